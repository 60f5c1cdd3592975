package rudder

import (
	"fmt"
)

// Engine evaluates one compiled rule set. The model and registry are
// immutable after New returns, so a single Engine is safe for concurrent
// Resolve calls with no locking; all mutable state is allocated per call.
type Engine struct {
	model    *Model
	registry *Registry
	opts     EngineOptions
}

// EngineOptions control engine construction. See the option functions for
// the meaning.
type EngineOptions struct {
	StepBudget int
}

// EngineOption configures an Engine.
type EngineOption func(o *EngineOptions)

// StepBudget caps the number of branch steps a single resolution may take.
// The compiler guarantees the diagram is acyclic, so traversal terminates;
// the budget is a guard against a malformed model slipping past
// validation. Zero selects a budget derived from the model size.
func StepBudget(n int) EngineOption {
	return func(o *EngineOptions) {
		o.StepBudget = n
	}
}

// New validates the model against the registry and returns an engine
// ready to resolve. Structural defects surface as MalformedModelError and
// missing functions as FunctionNotFoundError; neither is ever deferred to
// call time.
func New(model *Model, registry *Registry, opts ...EngineOption) (*Engine, error) {
	if model == nil {
		return nil, malformed("nil model")
	}
	if registry == nil {
		return nil, malformed("nil registry")
	}
	if err := Validate(model); err != nil {
		return nil, err
	}
	for _, id := range registry.UsedFunctions(model) {
		if _, ok := registry.Lookup(id); !ok {
			return nil, &FunctionNotFoundError{Fn: id}
		}
	}

	e := Engine{model: model, registry: registry}
	for _, opt := range opts {
		opt(&e.opts)
	}
	if e.opts.StepBudget == 0 {
		// Any acyclic traversal visits each node at most once.
		e.opts.StepBudget = len(model.Nodes) + 1
	}
	return &e, nil
}

// Model returns the engine's model.
func (e *Engine) Model() *Model { return e.model }

// Resolve evaluates the rule set against the parameters and returns the
// endpoint the call should target. The parameter map holds raw Go values
// (string, bool, []string) or Values keyed by declared parameter name.
//
// Expected non-endpoint outcomes are returned as *Failure: kind
// NoRuleMatched when no decision path reaches an endpoint, kind
// RuleDefined when the rule set selects an error result. Both carry the
// call's diagnostic trace.
func (e *Engine) Resolve(params map[string]interface{}) (*Endpoint, error) {
	e.registry.freeze()

	s, err := e.newScope(params)
	if err != nil {
		return nil, err
	}
	ref, err := s.walk()
	if err != nil {
		return nil, err
	}
	return s.render(ref)
}

// memoState is the per-call evaluation state of one condition.
type memoState uint8

const (
	condUnevaluated memoState = iota
	condTrue
	condFalse
)

// scope is the per-call scratch space: coerced parameters, bound context
// variables, the condition memo table and the diagnostic trace. A scope is
// never shared between calls.
type scope struct {
	engine *Engine
	params map[string]Value
	vars   map[string]Value
	memo   []memoState
	trace  *Trace

	// rendering flips once a terminal is reached. While rendering, a
	// reference to a variable whose condition was never evaluated on the
	// taken path reads as absent instead of failing; the compiler
	// guarantees such a read is always behind a coalesce.
	rendering bool
}

func (e *Engine) newScope(raw map[string]interface{}) (*scope, error) {
	params := make(map[string]Value, len(e.model.Params))
	for i := range e.model.Params {
		p := &e.model.Params[i]
		v, supplied := raw[p.Name]
		if !supplied || v == nil {
			switch {
			case p.Default.Present():
				params[p.Name] = p.Default
			case p.Required:
				return nil, &ParamError{Name: p.Name, Detail: "required parameter is not set"}
			default:
				params[p.Name] = Absent()
			}
			continue
		}
		coerced, err := coerceParam(p, v)
		if err != nil {
			return nil, err
		}
		params[p.Name] = coerced
	}
	for name := range raw {
		if _, ok := params[name]; !ok {
			return nil, &ParamError{Name: name, Detail: "parameter is not declared by the model"}
		}
	}

	return &scope{
		engine: e,
		params: params,
		vars:   make(map[string]Value),
		memo:   make([]memoState, len(e.model.Conditions)),
		trace:  newTrace(),
	}, nil
}

// coerceParam converts a raw caller value into a typed Value matching the
// parameter declaration.
func coerceParam(p *Parameter, raw interface{}) (Value, error) {
	if v, ok := raw.(Value); ok {
		if v.Present() && v.Typ.String() != p.Typ.String() {
			return Absent(), &ParamError{Name: p.Name, Detail: fmt.Sprintf("expected %s, got %s", p.Typ, v.Typ)}
		}
		return v, nil
	}
	switch x := raw.(type) {
	case string:
		if (p.Typ != String{}) {
			return Absent(), &ParamError{Name: p.Name, Detail: fmt.Sprintf("expected %s, got string", p.Typ)}
		}
		return StringVal(x), nil
	case bool:
		if (p.Typ != Bool{}) {
			return Absent(), &ParamError{Name: p.Name, Detail: fmt.Sprintf("expected %s, got boolean", p.Typ)}
		}
		return BoolVal(x), nil
	case []string:
		if (p.Typ != StringList{}) {
			return Absent(), &ParamError{Name: p.Name, Detail: fmt.Sprintf("expected %s, got stringArray", p.Typ)}
		}
		return ListVal(x), nil
	default:
		return Absent(), &ParamError{Name: p.Name, Detail: fmt.Sprintf("unsupported value type %T", raw)}
	}
}

// walk traverses the diagram from the root to a terminal reference.
func (s *scope) walk() (int64, error) {
	m := s.engine.model
	ref := m.Root
	for steps := 0; ; steps++ {
		if ref < 0 {
			return ref, nil
		}
		if steps >= s.engine.opts.StepBudget {
			return 0, malformed("step budget of %d exhausted; diagram is cyclic or budget too small", s.engine.opts.StepBudget)
		}
		node := &m.Nodes[ref]
		outcome, err := s.condition(int(node.Cond))
		if err != nil {
			return 0, err
		}
		if outcome {
			ref = node.High
		} else {
			ref = node.Low
		}
	}
}

// condition evaluates the condition at index, or reuses the memoized
// outcome. Memoization is keyed by condition index, not by node: several
// nodes share one condition, and the shared entry is what makes the
// function invocation and its binding side effect happen exactly once per
// call.
func (s *scope) condition(index int) (bool, error) {
	switch s.memo[index] {
	case condTrue:
		return true, nil
	case condFalse:
		return false, nil
	}

	c := &s.engine.model.Conditions[index]
	args := make([]Value, len(c.Argv))
	for i, a := range c.Argv {
		v, err := s.eval(a)
		if err != nil {
			return false, err
		}
		args[i] = v
	}

	fn, ok := s.engine.registry.Lookup(c.Fn)
	if !ok {
		// Checked at New; reaching this means the registry changed.
		return false, &FunctionNotFoundError{Fn: c.Fn}
	}
	v, err := fn.Call(args)
	if err != nil {
		return false, fmt.Errorf("condition %d: %s: %w", index, c.Fn, err)
	}

	// An absent result still performs the binding: later coalesce reads
	// must observe "tried and absent", not "never tried".
	if c.Assign != "" {
		s.vars[c.Assign] = v
	}

	outcome := v.Truthy()
	if outcome {
		s.memo[index] = condTrue
	} else {
		s.memo[index] = condFalse
	}
	s.trace.record(index, c, outcome, v)
	return outcome, nil
}

// eval resolves one expression against the call's parameters and context.
func (s *scope) eval(e Expr) (Value, error) {
	switch x := e.(type) {
	case Literal:
		return x.Value, nil

	case ParamRef:
		v, ok := s.params[x.Name]
		if !ok {
			return Absent(), malformed("reference to undeclared parameter %s", x.Name)
		}
		return v, nil

	case VarRef:
		v, ok := s.vars[x.Name]
		if !ok {
			if s.rendering {
				// The binding's condition was not on the taken path.
				return Absent(), nil
			}
			return Absent(), malformed("reference to unbound variable %s", x.Name)
		}
		return v, nil

	case GetAttr:
		v, err := s.eval(x.From)
		if err != nil {
			return Absent(), err
		}
		return v.Attr(x.Path), nil

	case Call:
		fn, ok := s.engine.registry.Lookup(x.Fn)
		if !ok {
			return Absent(), &FunctionNotFoundError{Fn: x.Fn}
		}
		args := make([]Value, len(x.Argv))
		for i, a := range x.Argv {
			v, err := s.eval(a)
			if err != nil {
				return Absent(), err
			}
			args[i] = v
		}
		v, err := fn.Call(args)
		if err != nil {
			return Absent(), fmt.Errorf("%s: %w", x.Fn, err)
		}
		return v, nil

	case Template:
		var out []byte
		for _, part := range x.Parts {
			v, err := s.eval(part)
			if err != nil {
				return Absent(), err
			}
			if !v.Present() {
				return Absent(), nil
			}
			str, ok := coerceString(v)
			if !ok {
				return Absent(), malformed("template part %s is not string-coercible", part)
			}
			out = append(out, str...)
		}
		return StringVal(string(out)), nil

	case Coalesce:
		// Every arm is evaluated exactly once before picking, so binding
		// side effects behind later arms fire even when an earlier arm
		// wins.
		if len(x.Argv) == 0 {
			return Absent(), malformed("empty coalesce")
		}
		vals := make([]Value, len(x.Argv))
		for i, a := range x.Argv {
			v, err := s.eval(a)
			if err != nil {
				return Absent(), err
			}
			vals[i] = v
		}
		for _, v := range vals[:len(vals)-1] {
			if v.Present() {
				return v, nil
			}
		}
		return vals[len(vals)-1], nil

	default:
		return Absent(), malformed("unknown expression %T", e)
	}
}
