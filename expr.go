package rudder

import (
	"fmt"
	"strings"
)

// Expr is one node of the expression micro-language used by condition
// arguments and result templates. Expressions are built by the model
// decoder (or by hand in tests) and are immutable once the model is
// constructed.
//
// The language is deliberately small: literals, parameter references,
// bound-variable references, attribute access, string templates, nested
// function calls through the function registry, and the coalesce
// combinator.
type Expr interface {
	// Implements the stringer interface; used in diagnostics and errors.
	String() string
}

// Literal is a constant value.
type Literal struct {
	Value Value
}

// ParamRef references a declared model parameter by name.
type ParamRef struct {
	Name string
}

// VarRef references a context variable bound by an earlier condition.
type VarRef struct {
	Name string
}

// GetAttr accesses an attribute path on the value of another expression.
type GetAttr struct {
	From Expr
	Path string
}

// Call invokes a registered function with the argument expressions.
type Call struct {
	Fn   string
	Argv []Expr
}

// Template concatenates the string forms of its parts. If any part is
// absent the whole template is absent.
type Template struct {
	Parts []Expr
}

// Coalesce evaluates every arm exactly once, in order, and yields the
// first present value, or the value of the last arm if none is present.
// All arms are evaluated even after a present value is found, so that
// binding side effects behind later arms are not lost.
type Coalesce struct {
	Argv []Expr
}

func (e Literal) String() string {
	if s, ok := e.Value.Str(); ok {
		return fmt.Sprintf("%q", s)
	}
	return e.Value.String()
}

func (e ParamRef) String() string { return "{" + e.Name + "}" }
func (e VarRef) String() string   { return "{" + e.Name + "}" }

func (e GetAttr) String() string {
	return fmt.Sprintf("getAttr(%s, %q)", e.From, e.Path)
}

func (e Call) String() string {
	return e.Fn + "(" + joinExprs(e.Argv) + ")"
}

func (e Template) String() string {
	var b strings.Builder
	b.WriteByte('"')
	for _, p := range e.Parts {
		if lit, ok := p.(Literal); ok {
			if s, isStr := lit.Value.Str(); isStr {
				b.WriteString(s)
				continue
			}
		}
		b.WriteString(p.String())
	}
	b.WriteByte('"')
	return b.String()
}

func (e Coalesce) String() string {
	return "coalesce(" + joinExprs(e.Argv) + ")"
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// walkExpr applies f to e and all its sub-expressions.
func walkExpr(e Expr, f func(Expr)) {
	f(e)
	switch x := e.(type) {
	case GetAttr:
		walkExpr(x.From, f)
	case Call:
		for _, a := range x.Argv {
			walkExpr(a, f)
		}
	case Template:
		for _, p := range x.Parts {
			walkExpr(p, f)
		}
	case Coalesce:
		for _, a := range x.Argv {
			walkExpr(a, f)
		}
	}
}
