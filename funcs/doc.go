// Package funcs supplies the built-in condition-function vocabulary for
// rudder models: string and boolean tests, substring and URI encoding,
// host-label validation, URL and ARN parsing, and partition lookup against
// a replaceable partition table.
//
// The root engine is function-agnostic; models only work once a Registry
// holds the functions they name. RegisterAll wires the full vocabulary,
// RegisterCore only the stateless string/boolean core.
package funcs
