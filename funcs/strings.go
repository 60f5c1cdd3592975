package funcs

import (
	"strings"

	"github.com/rudder-engine/rudder"
)

func isSet(args []rudder.Value) (rudder.Value, error) {
	if err := arity(args, 1); err != nil {
		return rudder.Absent(), err
	}
	return rudder.BoolVal(args[0].Present()), nil
}

func not(args []rudder.Value) (rudder.Value, error) {
	if err := arity(args, 1); err != nil {
		return rudder.Absent(), err
	}
	b, err := boolArg(args, 0)
	if err != nil {
		return rudder.Absent(), err
	}
	return rudder.BoolVal(!b), nil
}

func booleanEquals(args []rudder.Value) (rudder.Value, error) {
	if err := arity(args, 2); err != nil {
		return rudder.Absent(), err
	}
	a, err := boolArg(args, 0)
	if err != nil {
		return rudder.Absent(), err
	}
	b, err := boolArg(args, 1)
	if err != nil {
		return rudder.Absent(), err
	}
	return rudder.BoolVal(a == b), nil
}

func stringEquals(args []rudder.Value) (rudder.Value, error) {
	if err := arity(args, 2); err != nil {
		return rudder.Absent(), err
	}
	a, err := stringArg(args, 0)
	if err != nil {
		return rudder.Absent(), err
	}
	b, err := stringArg(args, 1)
	if err != nil {
		return rudder.Absent(), err
	}
	return rudder.BoolVal(a == b), nil
}

func getAttr(args []rudder.Value) (rudder.Value, error) {
	if err := arity(args, 2); err != nil {
		return rudder.Absent(), err
	}
	path, err := stringArg(args, 1)
	if err != nil {
		return rudder.Absent(), err
	}
	return args[0].Attr(path), nil
}

// substring returns the [start, stop) slice of the input, counted from the
// end when reverse is true. Out-of-range indices and non-ASCII input yield
// the absent value, never an error: rule sets probe with substring and
// branch on the result.
func substring(args []rudder.Value) (rudder.Value, error) {
	if err := arity(args, 4); err != nil {
		return rudder.Absent(), err
	}
	input, err := stringArg(args, 0)
	if err != nil {
		return rudder.Absent(), err
	}
	start, err := intArg(args, 1)
	if err != nil {
		return rudder.Absent(), err
	}
	stop, err := intArg(args, 2)
	if err != nil {
		return rudder.Absent(), err
	}
	reverse, err := boolArg(args, 3)
	if err != nil {
		return rudder.Absent(), err
	}

	if start < 0 || start >= stop || len(input) < stop {
		return rudder.Absent(), nil
	}
	for i := 0; i < len(input); i++ {
		if input[i] > 0x7f {
			return rudder.Absent(), nil
		}
	}
	if reverse {
		start, stop = len(input)-stop, len(input)-start
	}
	return rudder.StringVal(input[start:stop]), nil
}

// uriEncode percent-encodes everything outside the RFC 3986 unreserved
// set, with uppercase hex digits.
func uriEncode(args []rudder.Value) (rudder.Value, error) {
	if err := arity(args, 1); err != nil {
		return rudder.Absent(), err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return rudder.Absent(), err
	}

	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' ||
			c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0xf])
	}
	return rudder.StringVal(b.String()), nil
}
