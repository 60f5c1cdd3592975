package funcs

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/rudder-engine/rudder"
)

// RegisterCore wires the stateless functions: string and boolean tests,
// attribute access, substring, URI encoding, host-label validation and the
// URL/ARN parsers. Partition lookup is the only function left out, since
// it carries table state.
func RegisterCore(r *rudder.Registry) error {
	core := map[string]rudder.Func{
		"isSet":                     rudder.FuncOf(isSet),
		"not":                       rudder.FuncOf(not),
		"booleanEquals":             rudder.FuncOf(booleanEquals),
		"stringEquals":              rudder.FuncOf(stringEquals),
		"getAttr":                   rudder.FuncOf(getAttr),
		"substring":                 rudder.FuncOf(substring),
		"uriEncode":                 rudder.FuncOf(uriEncode),
		"isValidHostLabel":          rudder.FuncOf(isValidHostLabel),
		"isVirtualHostableS3Bucket": rudder.FuncOf(isVirtualHostableS3Bucket),
		"parseURL":                  rudder.FuncOf(parseURL),
		"parseArn":                  rudder.FuncOf(parseArn),
	}
	for id, fn := range core {
		if err := r.Register(id, fn, false); err != nil {
			return err
		}
	}
	return nil
}

// RegisterAll wires the full built-in vocabulary: the core plus partition
// lookup backed by the default partition table.
func RegisterAll(r *rudder.Registry) error {
	if err := RegisterCore(r); err != nil {
		return err
	}
	return r.Register("partition", NewPartitionFunc(DefaultPartitions()), true)
}

// Argument helpers. Condition functions receive argument shapes the
// upstream compiler controls; a mismatch is a model bug, so these return
// errors rather than absent values.

func arity(args []rudder.Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	return nil
}

func stringArg(args []rudder.Value, i int) (string, error) {
	s, ok := args[i].Str()
	if !ok {
		return "", fmt.Errorf("expected a string for the %s argument, got %s", humanize.Ordinal(i+1), describe(args[i]))
	}
	return s, nil
}

func boolArg(args []rudder.Value, i int) (bool, error) {
	b, ok := args[i].Boolean()
	if !ok {
		return false, fmt.Errorf("expected a boolean for the %s argument, got %s", humanize.Ordinal(i+1), describe(args[i]))
	}
	return b, nil
}

func intArg(args []rudder.Value, i int) (int, error) {
	n, ok := args[i].Num()
	if !ok {
		return 0, fmt.Errorf("expected an integer for the %s argument, got %s", humanize.Ordinal(i+1), describe(args[i]))
	}
	return n, nil
}

func describe(v rudder.Value) string {
	if !v.Present() {
		return "no value"
	}
	return v.Typ.String()
}
