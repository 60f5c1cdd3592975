package rudder

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Trace is the call-scoped record of every condition freshly evaluated
// while resolving. Memoized re-reads are not recorded; one entry per
// condition index per call. Traces are attached to failures so callers can
// see which conditions fired and with what values.
type Trace struct {
	// CallID ties the trace to one Resolve call in caller logs.
	CallID string

	// Steps, in evaluation order.
	Steps []TraceStep
}

// TraceStep is one fresh condition evaluation.
type TraceStep struct {
	// Condition index in the model's condition table.
	Condition int

	// Function identifier the condition invoked.
	Fn string

	// The boolean branch outcome.
	Outcome bool

	// Assign is the bound variable name, if the condition binds one.
	Assign string

	// Bound is the value stored under Assign, possibly absent.
	Bound Value
}

func newTrace() *Trace {
	return &Trace{CallID: uuid.NewString()}
}

func (t *Trace) record(index int, c *Condition, outcome bool, bound Value) {
	t.Steps = append(t.Steps, TraceStep{
		Condition: index,
		Fn:        c.Fn,
		Outcome:   outcome,
		Assign:    c.Assign,
		Bound:     bound,
	})
}

// String renders the trace as a table for debugging output.
func (t *Trace) String() string {
	tw := table.NewWriter()
	tw.SetTitle("\nRESOLUTION TRACE  %s\n", t.CallID)
	tw.AppendHeader(table.Row{"Cond", "Function", "Outcome", "Binding", "Value"})

	for _, s := range t.Steps {
		bound := ""
		if s.Assign != "" {
			bound = s.Bound.String()
		}
		tw.AppendRow(table.Row{
			fmt.Sprintf("%d", s.Condition),
			s.Fn,
			outcomeString(s.Outcome),
			s.Assign,
			bound,
		})
	}

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

func outcomeString(b bool) string {
	switch b {
	case true:
		return "TRUE"
	default:
		return "FALSE"
	}
}
