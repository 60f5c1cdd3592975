package funcs

import (
	"strings"

	"github.com/rudder-engine/rudder"
)

// parseArn parses the value into an ARN descriptor with the fields
// partition, service, region, accountId and resourceId. The resourceId is
// the resource portion split on ':' and '/' into a string list, so
// "bucket/key" reads as resourceId[0] = "bucket", resourceId[1] = "key".
// Region and accountId may be empty; the prefix, partition, service and
// resource must not be. Anything else yields the absent value.
func parseArn(args []rudder.Value) (rudder.Value, error) {
	if err := arity(args, 1); err != nil {
		return rudder.Absent(), err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return rudder.Absent(), err
	}

	parts := strings.SplitN(s, ":", 6)
	if len(parts) != 6 {
		return rudder.Absent(), nil
	}
	if parts[0] != "arn" || parts[1] == "" || parts[2] == "" || parts[5] == "" {
		return rudder.Absent(), nil
	}

	resource := strings.FieldsFunc(parts[5], func(r rune) bool {
		return r == ':' || r == '/'
	})
	if len(resource) == 0 {
		return rudder.Absent(), nil
	}

	return rudder.AttrsVal("arn", map[string]rudder.Value{
		"partition":  rudder.StringVal(parts[1]),
		"service":    rudder.StringVal(parts[2]),
		"region":     rudder.StringVal(parts[3]),
		"accountId":  rudder.StringVal(parts[4]),
		"resourceId": rudder.ListVal(resource),
	}), nil
}
