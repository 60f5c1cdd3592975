package rudder_test

import (
	"fmt"

	"github.com/rudder-engine/rudder"
	"github.com/rudder-engine/rudder/funcs"
)

// -------------------------------------------------- TEST REGISTRY

// newTestRegistry returns a registry with the built-in vocabulary plus any
// extra functions the test wires in.
func newTestRegistry(extra map[string]rudder.Func) *rudder.Registry {
	r := rudder.NewRegistry()
	if err := funcs.RegisterAll(r); err != nil {
		panic(err)
	}
	for id, fn := range extra {
		if err := r.Register(id, fn, false); err != nil {
			panic(err)
		}
	}
	return r
}

// counter is a condition function that counts its invocations; used to
// check the single-evaluation invariant.
type counter struct {
	calls  int
	result rudder.Value
}

func (c *counter) Call(args []rudder.Value) (rudder.Value, error) {
	c.calls++
	return c.result, nil
}

// -------------------------------------------------- MODEL BUILDERS

func endpointResult(url rudder.Expr) rudder.ResultSpec {
	return rudder.ResultSpec{Kind: rudder.EndpointResult, URL: url}
}

func lit(s string) rudder.Expr {
	return rudder.Literal{Value: rudder.StringVal(s)}
}

// abModel is the two-endpoint model of the basic scenario: if paramA is
// set resolve to a.example.com, otherwise to b.example.com.
func abModel() *rudder.Model {
	return &rudder.Model{
		Version: "1.1",
		Params: []rudder.Parameter{
			{Name: "paramA", Typ: rudder.String{}},
		},
		Conditions: []rudder.Condition{
			{Fn: "isSet", Argv: []rudder.Expr{rudder.ParamRef{Name: "paramA"}}},
		},
		Results: []rudder.ResultSpec{
			endpointResult(lit("https://a.example.com")),
			endpointResult(lit("https://b.example.com")),
		},
		Nodes: []rudder.Node{
			{Cond: 0, High: rudder.ResultRef(0), Low: rudder.ResultRef(1)},
		},
		Root: 0,
	}
}

// arnModel binds a parsed ARN and builds the endpoint host from one of its
// resource components.
func arnModel() *rudder.Model {
	return &rudder.Model{
		Version: "1.1",
		Params: []rudder.Parameter{
			{Name: "Bucket", Typ: rudder.String{}, Required: true},
		},
		Conditions: []rudder.Condition{
			{Fn: "parseArn", Argv: []rudder.Expr{rudder.ParamRef{Name: "Bucket"}}, Assign: "bucketArn"},
		},
		Results: []rudder.ResultSpec{
			endpointResult(rudder.Template{Parts: []rudder.Expr{
				lit("https://"),
				rudder.GetAttr{From: rudder.VarRef{Name: "bucketArn"}, Path: "resourceId[1]"},
				lit(".example.com"),
			}}),
		},
		Nodes: []rudder.Node{
			{Cond: 0, High: rudder.ResultRef(0), Low: rudder.NoMatchRef},
		},
		Root: 0,
	}
}

// sharedConditionModel routes through two nodes that both reference
// condition 1; the taken path visits both.
func sharedConditionModel() *rudder.Model {
	return &rudder.Model{
		Version: "1.1",
		Params: []rudder.Parameter{
			{Name: "paramA", Typ: rudder.String{}},
		},
		Conditions: []rudder.Condition{
			{Fn: "isSet", Argv: []rudder.Expr{rudder.ParamRef{Name: "paramA"}}},
			{Fn: "count", Argv: nil},
		},
		Results: []rudder.ResultSpec{
			endpointResult(lit("https://true.example.com")),
			endpointResult(lit("https://false.example.com")),
		},
		Nodes: []rudder.Node{
			{Cond: 1, High: 1, Low: 1},
			{Cond: 1, High: rudder.ResultRef(0), Low: rudder.ResultRef(1)},
		},
		Root: 0,
	}
}

// unsetBindingModel declares a binding on condition 1 which the happy path
// never evaluates; the reached result reads the variable behind a
// coalesce.
func unsetBindingModel() *rudder.Model {
	return &rudder.Model{
		Version: "1.1",
		Params: []rudder.Parameter{
			{Name: "paramA", Typ: rudder.String{}},
		},
		Conditions: []rudder.Condition{
			{Fn: "isSet", Argv: []rudder.Expr{rudder.ParamRef{Name: "paramA"}}},
			{Fn: "parseArn", Argv: []rudder.Expr{rudder.ParamRef{Name: "paramA"}}, Assign: "bucketArn"},
		},
		Results: []rudder.ResultSpec{
			endpointResult(rudder.Template{Parts: []rudder.Expr{
				lit("https://"),
				rudder.Coalesce{Argv: []rudder.Expr{
					rudder.GetAttr{From: rudder.VarRef{Name: "bucketArn"}, Path: "accountId"},
					lit("fallback"),
				}},
				lit(".example.com"),
			}}),
			endpointResult(lit("https://arn.example.com")),
		},
		Nodes: []rudder.Node{
			{Cond: 0, High: rudder.ResultRef(0), Low: 1},
			{Cond: 1, High: rudder.ResultRef(1), Low: rudder.NoMatchRef},
		},
		Root: 0,
	}
}

func mustEngine(m *rudder.Model, r *rudder.Registry, opts ...rudder.EngineOption) *rudder.Engine {
	e, err := rudder.New(m, r, opts...)
	if err != nil {
		panic(fmt.Sprintf("building engine: %v", err))
	}
	return e
}
