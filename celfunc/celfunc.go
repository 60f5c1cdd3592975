// Package celfunc exposes CEL programs as rudder registry functions, so
// integrators can plug one-off predicates into a rule set without writing
// Go. See https://github.com/google/cel-go and the CEL spec for the
// expression language itself.
package celfunc

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/pkg/errors"

	"github.com/rudder-engine/rudder"
)

// New compiles a CEL expression into a rudder.Func. The params name the
// CEL variables, bound positionally from the call arguments; an absent
// argument binds as null. The program is compiled once, here; Call only
// evaluates.
//
//	fn, err := celfunc.New(`account.matches("^[0-9]{12}$")`, "account")
//	err = registry.Register("accountIdValid", fn, false)
func New(src string, params ...string) (rudder.Func, error) {
	opts := make([]cel.EnvOption, len(params))
	for i, p := range params {
		opts[i] = cel.Variable(p, cel.DynType)
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "building CEL environment")
	}
	ast, iss := env.Compile(src)
	if iss.Err() != nil {
		return nil, errors.Wrap(iss.Err(), "compiling CEL expression")
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "building CEL program")
	}
	return &celFunc{prg: prg, params: params}, nil
}

type celFunc struct {
	prg    cel.Program
	params []string
}

func (f *celFunc) Call(args []rudder.Value) (rudder.Value, error) {
	if len(args) != len(f.params) {
		return rudder.Absent(), fmt.Errorf("expected %d arguments, got %d", len(f.params), len(args))
	}
	activation := make(map[string]interface{}, len(args))
	for i, p := range f.params {
		activation[p] = toNative(args[i])
	}
	out, _, err := f.prg.Eval(activation)
	if err != nil {
		return rudder.Absent(), errors.Wrap(err, "evaluating CEL program")
	}
	if out == types.NullValue {
		return rudder.Absent(), nil
	}
	return fromNative(out.Value())
}

func toNative(v rudder.Value) interface{} {
	if !v.Present() {
		return nil
	}
	switch x := v.Val.(type) {
	case map[string]rudder.Value:
		m := make(map[string]interface{}, len(x))
		for k, f := range x {
			m[k] = toNative(f)
		}
		return m
	default:
		return x
	}
}

func fromNative(out interface{}) (rudder.Value, error) {
	switch x := out.(type) {
	case bool:
		return rudder.BoolVal(x), nil
	case string:
		return rudder.StringVal(x), nil
	case int64:
		return rudder.IntVal(int(x)), nil
	case nil:
		return rudder.Absent(), nil
	case []string:
		return rudder.ListVal(x), nil
	case []interface{}:
		items := make([]string, len(x))
		for i, item := range x {
			s, ok := item.(string)
			if !ok {
				return rudder.Absent(), fmt.Errorf("CEL list element %d is %T, want string", i, item)
			}
			items[i] = s
		}
		return rudder.ListVal(items), nil
	case []ref.Val:
		items := make([]string, len(x))
		for i, item := range x {
			s, ok := item.Value().(string)
			if !ok {
				return rudder.Absent(), fmt.Errorf("CEL list element %d is %T, want string", i, item.Value())
			}
			items[i] = s
		}
		return rudder.ListVal(items), nil
	default:
		return rudder.Absent(), fmt.Errorf("unsupported CEL result type %T", out)
	}
}
