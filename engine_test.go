package rudder_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rudder-engine/rudder"
)

// Test that a single boolean condition selects between two endpoints.
func TestResolveBranches(t *testing.T) {
	e := mustEngine(abModel(), newTestRegistry(nil))

	ep, err := e.Resolve(map[string]interface{}{"paramA": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.URL != "https://a.example.com" {
		t.Fatalf("got %s, wanted https://a.example.com", ep.URL)
	}

	ep, err = e.Resolve(map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.URL != "https://b.example.com" {
		t.Fatalf("got %s, wanted https://b.example.com", ep.URL)
	}
}

// Test that a binding produced by an ARN parse is visible to the endpoint
// template, and that a failed parse takes the false branch.
func TestResolveArnBinding(t *testing.T) {
	e := mustEngine(arnModel(), newTestRegistry(nil))

	ep, err := e.Resolve(map[string]interface{}{
		"Bucket": "arn:aws:s3:us-east-1:123456789012:bucket/key",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.URL != "https://key.example.com" {
		t.Fatalf("got %s, wanted https://key.example.com", ep.URL)
	}

	_, err = e.Resolve(map[string]interface{}{"Bucket": "not-an-arn"})
	f, ok := rudder.AsFailure(err)
	if !ok {
		t.Fatalf("wanted a failure, got %v", err)
	}
	if f.Kind != rudder.NoRuleMatched {
		t.Fatalf("got kind %v, wanted NoRuleMatched", f.Kind)
	}
}

// Two nodes on the taken path share one condition index; its function must
// run exactly once per call.
func TestSharedConditionEvaluatedOnce(t *testing.T) {
	for _, outcome := range []bool{true, false} {
		c := &counter{result: rudder.BoolVal(outcome)}
		e := mustEngine(sharedConditionModel(), newTestRegistry(map[string]rudder.Func{"count": c}))

		ep, err := e.Resolve(map[string]interface{}{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.calls != 1 {
			t.Fatalf("condition function ran %d times, wanted 1", c.calls)
		}
		want := "https://false.example.com"
		if outcome {
			want = "https://true.example.com"
		}
		if ep.URL != want {
			t.Fatalf("got %s, wanted %s", ep.URL, want)
		}
	}
}

// The memo table is per call: a second Resolve re-evaluates.
func TestMemoScopedToCall(t *testing.T) {
	c := &counter{result: rudder.BoolVal(true)}
	e := mustEngine(sharedConditionModel(), newTestRegistry(map[string]rudder.Func{"count": c}))

	for i := 0; i < 3; i++ {
		if _, err := e.Resolve(map[string]interface{}{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if c.calls != 3 {
		t.Fatalf("condition function ran %d times over 3 calls, wanted 3", c.calls)
	}
}

// A binding whose condition was never evaluated on the taken path reads as
// absent while rendering; the coalesce fallback must win.
func TestUnsetBindingRendersAbsent(t *testing.T) {
	e := mustEngine(unsetBindingModel(), newTestRegistry(nil))

	ep, err := e.Resolve(map[string]interface{}{"paramA": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.URL != "https://fallback.example.com" {
		t.Fatalf("got %s, wanted https://fallback.example.com", ep.URL)
	}
}

// An explicitly absent binding is "tried and absent", not "never tried":
// the coalesce fallback applies without error and the condition does not
// rerun.
func TestAbsentBindingStillBinds(t *testing.T) {
	c := &counter{result: rudder.Absent()}
	m := &rudder.Model{
		Params: []rudder.Parameter{{Name: "paramA", Typ: rudder.String{}}},
		Conditions: []rudder.Condition{
			{Fn: "probe", Argv: nil, Assign: "probed"},
		},
		Results: []rudder.ResultSpec{
			endpointResult(rudder.Template{Parts: []rudder.Expr{
				lit("https://"),
				rudder.Coalesce{Argv: []rudder.Expr{
					rudder.VarRef{Name: "probed"},
					lit("fallback"),
				}},
				lit(".example.com"),
			}}),
		},
		Nodes: []rudder.Node{
			{Cond: 0, High: rudder.ResultRef(0), Low: rudder.ResultRef(0)},
		},
		Root: 0,
	}
	e := mustEngine(m, newTestRegistry(map[string]rudder.Func{"probe": c}))

	ep, err := e.Resolve(map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.URL != "https://fallback.example.com" {
		t.Fatalf("got %s, wanted https://fallback.example.com", ep.URL)
	}
	if c.calls != 1 {
		t.Fatalf("condition function ran %d times, wanted 1", c.calls)
	}
}

// Coalesce arms are evaluated even when an earlier arm wins, exactly once.
func TestCoalesceEvaluatesShortCircuitedArms(t *testing.T) {
	c := &counter{result: rudder.StringVal("later")}
	m := abModel()
	m.Results[0] = endpointResult(rudder.Coalesce{Argv: []rudder.Expr{
		lit("https://first.example.com"),
		rudder.Call{Fn: "count", Argv: nil},
	}})
	e := mustEngine(m, newTestRegistry(map[string]rudder.Func{"count": c}))

	ep, err := e.Resolve(map[string]interface{}{"paramA": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.URL != "https://first.example.com" {
		t.Fatalf("got %s, wanted the first arm", ep.URL)
	}
	if c.calls != 1 {
		t.Fatalf("short-circuited arm ran %d times, wanted 1", c.calls)
	}
}

// With no matching rule and no catch-all, Resolve returns a NoRuleMatched
// failure carrying a non-empty trace.
func TestNoRuleMatchedCarriesTrace(t *testing.T) {
	m := arnModel()
	e := mustEngine(m, newTestRegistry(nil))

	_, err := e.Resolve(map[string]interface{}{"Bucket": "not-an-arn"})
	f, ok := rudder.AsFailure(err)
	if !ok {
		t.Fatalf("wanted a failure, got %v", err)
	}
	if f.Kind != rudder.NoRuleMatched {
		t.Fatalf("got kind %v, wanted NoRuleMatched", f.Kind)
	}
	if f.Trace == nil || len(f.Trace.Steps) == 0 {
		t.Fatalf("failure carries no trace")
	}
	if f.Trace.CallID == "" {
		t.Fatalf("trace has no call id")
	}
}

// A rule-defined error result surfaces its templated message verbatim.
func TestRuleDefinedError(t *testing.T) {
	m := abModel()
	m.Results[1] = rudder.ResultSpec{
		Kind: rudder.ErrorResult,
		Msg: rudder.Template{Parts: []rudder.Expr{
			lit("paramA must be set"),
		}},
	}
	e := mustEngine(m, newTestRegistry(nil))

	_, err := e.Resolve(map[string]interface{}{})
	f, ok := rudder.AsFailure(err)
	if !ok {
		t.Fatalf("wanted a failure, got %v", err)
	}
	if f.Kind != rudder.RuleDefined {
		t.Fatalf("got kind %v, wanted RuleDefined", f.Kind)
	}
	if f.Message != "paramA must be set" {
		t.Fatalf("got message %q", f.Message)
	}
	if f.Trace == nil || len(f.Trace.Steps) == 0 {
		t.Fatalf("failure carries no trace")
	}
}

// Headers and properties render with absent entries omitted.
func TestEndpointHeadersAndProperties(t *testing.T) {
	m := abModel()
	m.Results[0] = rudder.ResultSpec{
		Kind: rudder.EndpointResult,
		URL:  lit("https://a.example.com"),
		Headers: map[string][]rudder.Expr{
			"x-param": {rudder.ParamRef{Name: "paramA"}},
			"x-empty": {rudder.Literal{Value: rudder.Absent()}},
		},
		Properties: map[string]rudder.Expr{
			"signingRegion": rudder.ParamRef{Name: "paramA"},
			"missing":       rudder.Literal{Value: rudder.Absent()},
		},
	}
	e := mustEngine(m, newTestRegistry(nil))

	ep, err := e.Resolve(map[string]interface{}{"paramA": "us-west-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ep.Headers["x-param"]; len(got) != 1 || got[0] != "us-west-2" {
		t.Fatalf("got headers %v", ep.Headers)
	}
	if _, ok := ep.Headers["x-empty"]; ok {
		t.Fatalf("absent header value was not omitted")
	}
	if v, ok := ep.Properties["signingRegion"]; !ok || !v.Equal(rudder.StringVal("us-west-2")) {
		t.Fatalf("got properties %v", ep.Properties)
	}
	if _, ok := ep.Properties["missing"]; ok {
		t.Fatalf("absent property was not omitted")
	}
}

// Parameter handling: defaults apply, required params are enforced, and
// undeclared or ill-typed values are rejected.
func TestParameterHandling(t *testing.T) {
	m := abModel()
	m.Params[0].Default = rudder.StringVal("defaulted")

	e := mustEngine(m, newTestRegistry(nil))
	ep, err := e.Resolve(map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.URL != "https://a.example.com" {
		t.Fatalf("default was not applied: %s", ep.URL)
	}

	e = mustEngine(arnModel(), newTestRegistry(nil))
	_, err = e.Resolve(map[string]interface{}{})
	var pe *rudder.ParamError
	if !errors.As(err, &pe) || pe.Name != "Bucket" {
		t.Fatalf("wanted a ParamError for Bucket, got %v", err)
	}

	_, err = e.Resolve(map[string]interface{}{"Bucket": 17})
	if !errors.As(err, &pe) {
		t.Fatalf("wanted a ParamError for an ill-typed value, got %v", err)
	}

	_, err = e.Resolve(map[string]interface{}{"Bucket": "arn:aws:s3:::b/k", "Mystery": "x"})
	if !errors.As(err, &pe) || pe.Name != "Mystery" {
		t.Fatalf("wanted a ParamError for an undeclared name, got %v", err)
	}
}

// The registry freezes at the first Resolve.
func TestRegistryFreezesOnFirstResolve(t *testing.T) {
	r := newTestRegistry(nil)
	e := mustEngine(abModel(), r)

	if _, err := e.Resolve(map[string]interface{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.Register("late", rudder.FuncOf(func([]rudder.Value) (rudder.Value, error) {
		return rudder.BoolVal(true), nil
	}), false)
	if err == nil {
		t.Fatalf("registering after freeze succeeded")
	}
	if !strings.Contains(err.Error(), "frozen") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// A function missing from the registry fails engine construction, not the
// call.
func TestFunctionNotFoundAtConstruction(t *testing.T) {
	r := rudder.NewRegistry()
	_, err := rudder.New(abModel(), r)
	var fnf *rudder.FunctionNotFoundError
	if !errors.As(err, &fnf) || fnf.Fn != "isSet" {
		t.Fatalf("wanted FunctionNotFoundError for isSet, got %v", err)
	}
}

// An exhausted step budget surfaces as a malformed-model error instead of
// looping.
func TestStepBudget(t *testing.T) {
	e := mustEngine(sharedConditionModel(),
		newTestRegistry(map[string]rudder.Func{"count": &counter{result: rudder.BoolVal(true)}}),
		rudder.StepBudget(1))

	_, err := e.Resolve(map[string]interface{}{})
	var mm *rudder.MalformedModelError
	if !errors.As(err, &mm) {
		t.Fatalf("wanted MalformedModelError, got %v", err)
	}
}

// Exhaustive assignment over a small model reaches every result: the
// upstream compiler emits no dead results, and the walker must not make
// any unreachable.
func TestAllResultsReachable(t *testing.T) {
	m := &rudder.Model{
		Params: []rudder.Parameter{
			{Name: "paramA", Typ: rudder.String{}},
			{Name: "paramB", Typ: rudder.Bool{}},
		},
		Conditions: []rudder.Condition{
			{Fn: "isSet", Argv: []rudder.Expr{rudder.ParamRef{Name: "paramA"}}},
			{Fn: "isSet", Argv: []rudder.Expr{rudder.ParamRef{Name: "paramB"}}},
		},
		Results: []rudder.ResultSpec{
			endpointResult(lit("https://both.example.com")),
			endpointResult(lit("https://a-only.example.com")),
			endpointResult(lit("https://neither.example.com")),
		},
		Nodes: []rudder.Node{
			{Cond: 0, High: 1, Low: 2},
			{Cond: 1, High: rudder.ResultRef(0), Low: rudder.ResultRef(1)},
			{Cond: 1, High: rudder.ResultRef(2), Low: rudder.ResultRef(2)},
		},
		Root: 0,
	}
	e := mustEngine(m, newTestRegistry(nil))

	reached := map[string]bool{}
	for _, withA := range []bool{true, false} {
		for _, withB := range []bool{true, false} {
			params := map[string]interface{}{}
			if withA {
				params["paramA"] = "x"
			}
			if withB {
				params["paramB"] = true
			}
			ep, err := e.Resolve(params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			reached[ep.URL] = true
		}
	}
	if len(reached) != len(m.Results) {
		t.Fatalf("reached %d of %d results: %v", len(reached), len(m.Results), reached)
	}
}

// Concurrent calls share the engine but nothing mutable.
func TestConcurrentResolve(t *testing.T) {
	e := mustEngine(abModel(), newTestRegistry(nil))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(set bool) {
			defer wg.Done()
			params := map[string]interface{}{}
			want := "https://b.example.com"
			if set {
				params["paramA"] = "x"
				want = "https://a.example.com"
			}
			ep, err := e.Resolve(params)
			if err != nil {
				errs <- err
				return
			}
			if ep.URL != want {
				errs <- &rudder.MalformedModelError{Detail: "wrong endpoint " + ep.URL}
			}
		}(i%2 == 0)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
}
