package rudder_test

import (
	"reflect"
	"testing"

	"github.com/rudder-engine/rudder"
	"github.com/rudder-engine/rudder/funcs"
)

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := rudder.NewRegistry()
	fn := rudder.FuncOf(func([]rudder.Value) (rudder.Value, error) {
		return rudder.BoolVal(true), nil
	})

	if err := r.Register("f", fn, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register("f", fn, false); err == nil {
		t.Fatalf("duplicate registration succeeded")
	}
	if err := r.Register("", fn, false); err == nil {
		t.Fatalf("empty identifier accepted")
	}
	if err := r.Register("g", nil, false); err == nil {
		t.Fatalf("nil implementation accepted")
	}
}

// UsedFunctions reports the model's vocabulary, sorted, covering both
// conditions and result expressions.
func TestUsedFunctions(t *testing.T) {
	m := arnModel()
	m.Results[0] = endpointResult(rudder.Call{Fn: "uriEncode", Argv: []rudder.Expr{
		rudder.ParamRef{Name: "Bucket"},
	}})
	r := newTestRegistry(nil)

	got := r.UsedFunctions(m)
	want := []string{"parseArn", "uriEncode"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, wanted %v", got, want)
	}
}

// Only partition is registered with auxiliary state, so NeedsState follows
// whether the model calls it.
func TestNeedsState(t *testing.T) {
	r := newTestRegistry(nil)

	if r.NeedsState(abModel()) {
		t.Fatalf("model without partition reported as needing state")
	}

	m := abModel()
	m.Conditions = append(m.Conditions, rudder.Condition{
		Fn:     "partition",
		Argv:   []rudder.Expr{rudder.ParamRef{Name: "paramA"}},
		Assign: "partitionResult",
	})
	m.Nodes = []rudder.Node{
		{Cond: 0, High: 1, Low: rudder.ResultRef(1)},
		{Cond: 1, High: rudder.ResultRef(0), Low: rudder.ResultRef(1)},
	}
	if !r.NeedsState(m) {
		t.Fatalf("model calling partition reported as stateless")
	}
}

func TestRegisterAllVocabulary(t *testing.T) {
	r := rudder.NewRegistry()
	if err := funcs.RegisterAll(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []string{
		"isSet", "not", "booleanEquals", "stringEquals", "getAttr",
		"substring", "uriEncode", "isValidHostLabel", "parseURL",
		"parseArn", "isVirtualHostableS3Bucket", "partition",
	} {
		if _, ok := r.Lookup(id); !ok {
			t.Fatalf("built-in %s is not registered", id)
		}
	}
}
