package rudder

// Validate checks a model for the structural defects an upstream compiler
// bug could introduce: references out of range, a cyclic diagram, and
// expressions naming parameters or variables that cannot exist. New runs
// it on every model; it is exported so tooling can check models without
// building an engine.
func Validate(m *Model) error {
	declared := make(map[string]bool, len(m.Params))
	for _, p := range m.Params {
		if p.Name == "" {
			return malformed("parameter with empty name")
		}
		if p.Typ == nil {
			return malformed("parameter %s has no type", p.Name)
		}
		if declared[p.Name] {
			return malformed("parameter %s declared twice", p.Name)
		}
		declared[p.Name] = true
		if p.Default.Present() && p.Default.Typ.String() != p.Typ.String() {
			return malformed("parameter %s default has type %s, want %s", p.Name, p.Default.Typ, p.Typ)
		}
	}

	// Conditions are ordered: a variable reference inside condition i must
	// be bound by some earlier condition. Result expressions may reference
	// any binding; whether the taken path actually performed it is decided
	// at render time, where an unset binding reads as absent.
	bound := make(map[string]bool)
	for i, c := range m.Conditions {
		if c.Fn == "" {
			return malformed("condition %d has no function", i)
		}
		for _, a := range c.Argv {
			if err := checkExpr(a, declared, bound, i); err != nil {
				return err
			}
		}
		if c.Assign != "" {
			bound[c.Assign] = true
		}
	}

	for i, r := range m.Results {
		switch r.Kind {
		case EndpointResult:
			if r.URL == nil {
				return malformed("endpoint result %d has no url", i)
			}
			if r.Msg != nil {
				return malformed("endpoint result %d carries an error message", i)
			}
			exprs := []Expr{r.URL}
			for _, vals := range r.Headers {
				exprs = append(exprs, vals...)
			}
			for _, p := range r.Properties {
				exprs = append(exprs, p)
			}
			for _, e := range exprs {
				if err := checkExpr(e, declared, bound, -1); err != nil {
					return err
				}
			}
		case ErrorResult:
			if r.Msg == nil {
				return malformed("error result %d has no message", i)
			}
			if err := checkExpr(r.Msg, declared, bound, -1); err != nil {
				return err
			}
		default:
			return malformed("result %d has unknown kind %d", i, r.Kind)
		}
	}

	if err := checkRef(m, m.Root, "root"); err != nil {
		return err
	}
	for i, n := range m.Nodes {
		if int(n.Cond) >= len(m.Conditions) {
			return malformed("node %d references condition %d, table has %d", i, n.Cond, len(m.Conditions))
		}
		if err := checkRef(m, n.High, "high"); err != nil {
			return err
		}
		if err := checkRef(m, n.Low, "low"); err != nil {
			return err
		}
	}

	return checkAcyclic(m)
}

// checkExpr validates one expression tree. cond is the index of the
// condition the expression belongs to, or -1 for result expressions.
func checkExpr(e Expr, declared, bound map[string]bool, cond int) error {
	var failure error
	walkExpr(e, func(sub Expr) {
		if failure != nil {
			return
		}
		switch x := sub.(type) {
		case ParamRef:
			if !declared[x.Name] {
				failure = malformed("reference to undeclared parameter %s", x.Name)
			}
		case VarRef:
			if !bound[x.Name] {
				if cond >= 0 {
					failure = malformed("condition %d references variable %s before any condition binds it", cond, x.Name)
				} else {
					failure = malformed("result references variable %s that no condition binds", x.Name)
				}
			}
		case Coalesce:
			if len(x.Argv) == 0 {
				failure = malformed("empty coalesce")
			}
		case Call:
			if x.Fn == "" {
				failure = malformed("call with empty function identifier")
			}
		case nil:
			failure = malformed("nil expression")
		}
	})
	return failure
}

func checkRef(m *Model, ref int64, where string) error {
	if ref >= 0 {
		if ref >= int64(len(m.Nodes)) {
			return malformed("%s reference %d exceeds node arena of %d", where, ref, len(m.Nodes))
		}
		return nil
	}
	if ref == NoMatchRef {
		return nil
	}
	index, _ := RefResult(ref)
	if index >= len(m.Results) {
		return malformed("%s reference %d addresses result %d, table has %d", where, ref, index, len(m.Results))
	}
	return nil
}

// checkAcyclic runs an iterative three-color depth-first search over the
// whole node arena. The walker has a step budget as a second line of
// defense, but a cycle is a compiler bug and should be caught here, once,
// at load.
func checkAcyclic(m *Model) error {
	const (
		white = iota // unvisited
		grey         // on the current path
		black        // finished
	)
	color := make([]uint8, len(m.Nodes))

	for start := range m.Nodes {
		if color[start] != white {
			continue
		}
		// Stack frames hold the node index and which child to visit next.
		type frame struct {
			node int
			next int
		}
		stack := []frame{{node: start}}
		color[start] = grey
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := [2]int64{m.Nodes[top.node].High, m.Nodes[top.node].Low}
			if top.next >= len(children) {
				color[top.node] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := children[top.next]
			top.next++
			if child < 0 {
				continue
			}
			switch color[child] {
			case grey:
				return malformed("diagram contains a cycle through node %d", child)
			case white:
				color[child] = grey
				stack = append(stack, frame{node: int(child)})
			}
		}
	}
	return nil
}
