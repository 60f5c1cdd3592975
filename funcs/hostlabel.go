package funcs

import (
	"net"
	"strings"

	"github.com/rudder-engine/rudder"
)

// isValidHostLabel reports whether the value is a valid RFC 1123 host
// label: 1-63 characters, alphanumeric plus interior hyphens, starting
// with an alphanumeric. With allowSubDomains true the value may be a
// dot-separated sequence of such labels.
func isValidHostLabel(args []rudder.Value) (rudder.Value, error) {
	if err := arity(args, 2); err != nil {
		return rudder.Absent(), err
	}
	value, err := stringArg(args, 0)
	if err != nil {
		return rudder.Absent(), err
	}
	allowSubDomains, err := boolArg(args, 1)
	if err != nil {
		return rudder.Absent(), err
	}

	labels := []string{value}
	if allowSubDomains {
		labels = strings.Split(value, ".")
	}
	for _, label := range labels {
		if !validLabel(label) {
			return rudder.BoolVal(false), nil
		}
	}
	return rudder.BoolVal(true), nil
}

func validLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' && i > 0:
		default:
			return false
		}
	}
	return true
}

// isVirtualHostableS3Bucket reports whether the value can appear as the
// host prefix of a virtual-hosted bucket URL: lowercase labels, 3-63
// characters overall, no hyphens at label edges, not shaped like an IPv4
// address, and dots only when allowSubDomains is true.
func isVirtualHostableS3Bucket(args []rudder.Value) (rudder.Value, error) {
	if err := arity(args, 2); err != nil {
		return rudder.Absent(), err
	}
	value, err := stringArg(args, 0)
	if err != nil {
		return rudder.Absent(), err
	}
	allowSubDomains, err := boolArg(args, 1)
	if err != nil {
		return rudder.Absent(), err
	}

	if len(value) < 3 || len(value) > 63 {
		return rudder.BoolVal(false), nil
	}
	if net.ParseIP(value) != nil {
		return rudder.BoolVal(false), nil
	}

	labels := []string{value}
	if allowSubDomains {
		labels = strings.Split(value, ".")
	}
	for _, label := range labels {
		if !virtualHostableLabel(label) {
			return rudder.BoolVal(false), nil
		}
	}
	return rudder.BoolVal(true), nil
}

func virtualHostableLabel(label string) bool {
	if len(label) == 0 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}
