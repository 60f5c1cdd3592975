package rudder

import (
	"errors"
	"fmt"
)

// FailureKind classifies the expected, per-call ways a resolution can end
// without an endpoint.
type FailureKind int

const (
	// NoRuleMatched means no decision path reached an endpoint result.
	NoRuleMatched FailureKind = iota

	// RuleDefined means the rule set itself selected an error result with
	// an author-written message.
	RuleDefined
)

func (k FailureKind) String() string {
	switch k {
	case NoRuleMatched:
		return "no rule matched"
	case RuleDefined:
		return "rule-defined error"
	default:
		return "unknown"
	}
}

// Failure is the typed error returned by Resolve for expected outcomes:
// no rule matched, or the rule set chose an error result. The diagnostic
// trace of the call is attached so callers can report which conditions
// fired and with what values.
type Failure struct {
	Kind    FailureKind
	Message string
	Trace   *Trace
}

func (f *Failure) Error() string {
	return f.Message
}

// AsFailure unwraps err into a *Failure if it is one.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// MalformedModelError reports a structural defect in a model: an index out
// of range, a cyclic diagram, or a reference to a variable that no
// reachable condition binds. These are programming errors in the upstream
// compiler and are detected at construction, not tolerated at runtime.
type MalformedModelError struct {
	Detail string
}

func (e *MalformedModelError) Error() string {
	return "malformed model: " + e.Detail
}

func malformed(format string, args ...interface{}) error {
	return &MalformedModelError{Detail: fmt.Sprintf(format, args...)}
}

// FunctionNotFoundError reports that a model references a function absent
// from the registry. Detected at construction.
type FunctionNotFoundError struct {
	Fn string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function not found: %s", e.Fn)
}

// ParamError reports an invalid parameter map passed to Resolve: a missing
// required parameter, a value of the wrong type, or an undeclared name.
type ParamError struct {
	Name   string
	Detail string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Name, e.Detail)
}
