package rudder

// A Model is the compiled form of an endpoint rule set: parameter
// declarations, an ordered condition table, an ordered result table and a
// flat node arena forming an acyclic decision diagram. Models are produced
// by an upstream rule compiler and consumed here as data; once a Model has
// been handed to New it must not be modified.
//
// # Reference encoding
//
// Node fields High, Low and the model Root hold references. A reference
// r >= 0 indexes the Nodes arena. The reserved negative values are
// terminals: r == NoMatchRef means no rule matched, and r <= -2 addresses
// result -(r + 2) in the Results table. ResultRef and RefResult convert
// between the two forms.
type Model struct {
	// Rule set version, carried through from the authoring format.
	Version string

	// Declared parameters, in a stable order.
	Params []Parameter

	// The condition table. Condition indices are stable; nodes refer to
	// conditions by index and several nodes may share one condition.
	Conditions []Condition

	// The result table, addressed by encoded references.
	Results []ResultSpec

	// The node arena.
	Nodes []Node

	// Root is the reference evaluation starts from. It may itself be a
	// terminal for degenerate single-result models.
	Root int64
}

// Parameter declares one input to Resolve: its name, declared type,
// whether the caller must supply it, and an optional default applied when
// the caller does not.
type Parameter struct {
	Name     string
	Typ      Type
	Required bool

	// Default is applied when the parameter is not supplied. Absent means
	// no default.
	Default Value

	// Documentation is carried for tooling; not used during evaluation.
	Documentation string
}

// Condition is one indexed boolean test: a function identifier, its
// argument expressions, and an optional context-variable name the
// function's result is bound under.
type Condition struct {
	Fn   string
	Argv []Expr

	// Assign names the context variable the function result is stored
	// under, including an explicitly absent result. Empty means no
	// binding.
	Assign string
}

// Node is one binary branch of the decision diagram: evaluate the
// condition at Cond, follow High if it is true, Low otherwise.
type Node struct {
	Cond uint32
	High int64
	Low  int64
}

// NoMatchRef is the terminal reference meaning no rule matched.
const NoMatchRef int64 = -1

// ResultRef encodes a result-table index as a terminal reference.
func ResultRef(index int) int64 {
	return -(int64(index) + 2)
}

// RefResult decodes a terminal reference into a result-table index.
// Returns false for node references and for NoMatchRef.
func RefResult(ref int64) (int, bool) {
	if ref > NoMatchRef {
		return 0, false
	}
	if ref == NoMatchRef {
		return 0, false
	}
	return int(-ref - 2), true
}

// ResultKind discriminates the variants of a ResultSpec.
type ResultKind int

const (
	// EndpointResult renders a URL, headers and properties.
	EndpointResult ResultKind = iota

	// ErrorResult renders a rule-defined error message.
	ErrorResult
)

func (k ResultKind) String() string {
	switch k {
	case EndpointResult:
		return "endpoint"
	case ErrorResult:
		return "error"
	default:
		return "unknown"
	}
}

// ResultSpec is one entry of the result table: either an endpoint template
// or a rule-defined error template. The implicit "no match" terminal is
// not stored in the table; it is the NoMatchRef reference.
type ResultSpec struct {
	Kind ResultKind

	// URL is the endpoint URL expression. Endpoint results only.
	URL Expr

	// Headers maps header names to value-list expressions. Entries whose
	// expression evaluates to an absent value are omitted from the
	// rendered endpoint.
	Headers map[string][]Expr

	// Properties maps property names to expressions carrying opaque
	// per-endpoint metadata such as signing overrides. Absent entries are
	// omitted.
	Properties map[string]Expr

	// Msg is the error message expression. Error results only.
	Msg Expr
}

// Endpoint is the caller-visible outcome of a successful resolution: the
// network target plus auxiliary per-call metadata.
type Endpoint struct {
	URL        string
	Headers    map[string][]string
	Properties map[string]Value
}

// usedFunctions returns the set of function identifiers the model
// exercises, in conditions and in result expressions. The surrounding
// system can use this to carry only the function state a model needs.
func usedFunctions(m *Model) map[string]bool {
	used := make(map[string]bool)
	collect := func(e Expr) {
		walkExpr(e, func(sub Expr) {
			if c, ok := sub.(Call); ok {
				used[c.Fn] = true
			}
		})
	}
	for _, c := range m.Conditions {
		used[c.Fn] = true
		for _, a := range c.Argv {
			collect(a)
		}
	}
	for _, r := range m.Results {
		if r.URL != nil {
			collect(r.URL)
		}
		if r.Msg != nil {
			collect(r.Msg)
		}
		for _, vals := range r.Headers {
			for _, v := range vals {
				collect(v)
			}
		}
		for _, p := range r.Properties {
			collect(p)
		}
	}
	return used
}
