// Package rudder resolves the concrete network endpoint an outbound API
// call should target: a URL plus extra headers and signing/connection
// properties, chosen from a declaratively-authored rule set compiled into
// a shared decision diagram.
//
// Rule authors express "if parameter P looks like X use endpoint A, else
// fall back to B" trees once; an upstream compiler flattens those trees
// into the tables a Model holds: parameter declarations, an ordered
// condition table, a result table and a node arena. Rudder evaluates that
// model; it never authors or compiles rules.
//
// Typical use is as follows:
//
//  1. Build a Registry and register the function vocabulary the model
//     needs (funcs.RegisterAll covers the built-in set)
//  2. Decode the serialized model with DecodeModel
//  3. Construct an Engine with New, which validates the model and the
//     registry against each other
//  4. Call Resolve once per outbound call with that call's parameters
//  5. Use the returned Endpoint, or inspect the Failure and its Trace
//
// # Sharing and concurrency
//
// A Model and a Registry are immutable after New returns: the registry
// freezes at the first Resolve, and the model must not be modified once
// handed over. A single Engine is therefore safe for concurrent Resolve
// calls from any number of goroutines. Everything mutable (parameter
// values, bound context variables, the condition memo table and the
// diagnostic trace) is allocated per call and never shared.
//
// # Conditions, bindings and memoization
//
// Several diagram nodes may reference the same condition; the engine
// memoizes evaluation by condition index so the condition's function runs
// exactly once per call, and its binding side effect (storing the
// function's result, including an explicitly absent result, under a
// context-variable name) happens exactly once. A bound variable holding
// an absent value means "tried and produced nothing", which is exactly
// what coalesce expressions in result templates need to observe.
package rudder
