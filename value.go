package rudder

import (
	"fmt"
	"strconv"
	"strings"
)

// Type defines a type in the rudder type system. These types are used to
// declare model parameters, to describe bound context variables, and to
// interpret the values produced by condition functions.
type Type interface {
	// Implements the stringer interface
	String() string
}

// String defines a rudder string type.
type String struct{}

// Bool defines a rudder type for true/false.
type Bool struct{}

// Int defines a rudder integer type. Integers only occur as expression
// literals (for example the index arguments to substring); they cannot be
// declared as model parameters.
type Int struct{}

// StringList defines a rudder type representing a list of strings.
type StringList struct{}

// Attrs defines a rudder type for a structured descriptor value such as a
// parsed ARN, a parsed URL or a partition. The Name identifies which
// descriptor it is. Fields of an Attrs value are addressed with getAttr
// paths ("accountId", "resourceId[0]").
type Attrs struct {
	Name string
}

func (String) String() string     { return "string" }
func (Bool) String() string       { return "boolean" }
func (Int) String() string        { return "integer" }
func (StringList) String() string { return "stringArray" }
func (t Attrs) String() string    { return t.Name }

// ParseType parses a type name used in parameter declarations of a
// serialized model and returns the type. Only the declarable types are
// recognized; integers and descriptors never appear in declarations.
func ParseType(t string) (Type, error) {
	switch t {
	case "string":
		return String{}, nil
	case "boolean":
		return Bool{}, nil
	case "stringArray":
		return StringList{}, nil
	default:
		return nil, fmt.Errorf("unrecognized type: %s", t)
	}
}

// Value is a typed value flowing through condition and result expressions.
// The zero Value is "absent": a value that a function tried to produce but
// could not (for example parseArn on a string that is not an ARN). Absence
// is meaningful and must be distinguishable from "never evaluated"; an
// evaluation-context entry holding an absent Value means the binding was
// performed and produced nothing.
type Value struct {
	// The rudder type stored. Nil means the value is absent.
	Typ Type

	// The value stored: string, bool, int, []string or map[string]Value
	// depending on Typ.
	Val interface{}
}

// Absent returns the absent value.
func Absent() Value { return Value{} }

// Present reports whether the value holds anything.
func (v Value) Present() bool { return v.Typ != nil }

// StringVal wraps a string.
func StringVal(s string) Value { return Value{Typ: String{}, Val: s} }

// BoolVal wraps a bool.
func BoolVal(b bool) Value { return Value{Typ: Bool{}, Val: b} }

// IntVal wraps an int.
func IntVal(i int) Value { return Value{Typ: Int{}, Val: i} }

// ListVal wraps a list of strings.
func ListVal(items []string) Value { return Value{Typ: StringList{}, Val: items} }

// AttrsVal wraps a named attribute map describing a structured value.
func AttrsVal(name string, fields map[string]Value) Value {
	return Value{Typ: Attrs{Name: name}, Val: fields}
}

// Str returns the string held by the value, and whether it holds one.
func (v Value) Str() (string, bool) {
	s, ok := v.Val.(string)
	return s, ok
}

// Boolean returns the bool held by the value, and whether it holds one.
func (v Value) Boolean() (bool, bool) {
	b, ok := v.Val.(bool)
	return b, ok
}

// Num returns the int held by the value, and whether it holds one.
func (v Value) Num() (int, bool) {
	i, ok := v.Val.(int)
	return i, ok
}

// List returns the string list held by the value, and whether it holds one.
func (v Value) List() ([]string, bool) {
	l, ok := v.Val.([]string)
	return l, ok
}

// Fields returns the attribute map of a structured value, and whether the
// value is structured.
func (v Value) Fields() (map[string]Value, bool) {
	m, ok := v.Val.(map[string]Value)
	return m, ok
}

// Truthy is the boolean reading of a value when it decides a branch: false
// when absent, the bool itself for booleans, true for any other present
// value.
func (v Value) Truthy() bool {
	if !v.Present() {
		return false
	}
	if b, ok := v.Val.(bool); ok {
		return b
	}
	return true
}

// Equal compares two values structurally. Absent values are equal to each
// other and to nothing else.
func (v Value) Equal(o Value) bool {
	if !v.Present() || !o.Present() {
		return v.Present() == o.Present()
	}
	if v.Typ.String() != o.Typ.String() {
		return false
	}
	switch a := v.Val.(type) {
	case string:
		b, ok := o.Val.(string)
		return ok && a == b
	case bool:
		b, ok := o.Val.(bool)
		return ok && a == b
	case int:
		b, ok := o.Val.(int)
		return ok && a == b
	case []string:
		b, ok := o.Val.([]string)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	case map[string]Value:
		b, ok := o.Val.(map[string]Value)
		if !ok || len(a) != len(b) {
			return false
		}
		for k := range a {
			if !a[k].Equal(b[k]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Attr navigates a getAttr path into the value. Each path segment names a
// field of a structured value and may carry a list index, for example
// "resourceId[1]" or "url.scheme". A path that does not resolve yields the
// absent value.
func (v Value) Attr(path string) Value {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		name, idx, indexed, ok := splitIndex(seg)
		if !ok {
			return Absent()
		}
		if name != "" {
			fields, isAttrs := cur.Fields()
			if !isAttrs {
				return Absent()
			}
			next, found := fields[name]
			if !found {
				return Absent()
			}
			cur = next
		}
		if indexed {
			items, isList := cur.List()
			if !isList || idx < 0 || idx >= len(items) {
				return Absent()
			}
			cur = StringVal(items[idx])
		}
	}
	return cur
}

// splitIndex splits a path segment into its field name and optional list
// index. "resourceId[1]" yields ("resourceId", 1, true, true).
func splitIndex(seg string) (name string, idx int, indexed bool, ok bool) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, 0, false, seg != ""
	}
	if !strings.HasSuffix(seg, "]") {
		return "", 0, false, false
	}
	n, err := strconv.Atoi(seg[open+1 : len(seg)-1])
	if err != nil {
		return "", 0, false, false
	}
	return seg[:open], n, true, true
}

// coerceString renders a value for inclusion in a string template. Only
// strings, booleans and integers have a string form.
func coerceString(v Value) (string, bool) {
	switch x := v.Val.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	default:
		return "", false
	}
}

// String renders the value for diagnostics.
func (v Value) String() string {
	if !v.Present() {
		return "<none>"
	}
	return fmt.Sprintf("%v", v.Val)
}
