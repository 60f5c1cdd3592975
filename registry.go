package rudder

import (
	"sort"
	"sync"
)

// Func is the uniform capability implemented by every condition and
// expression function. Implementations must be non-blocking, free of I/O,
// and must have no side effects beyond their return value; the engine
// performs the binding side effect on their behalf.
//
// Returning the absent Value is the normal way to say "no result" (for
// example a parse that failed); returning an error aborts the whole
// resolution and should be reserved for argument-shape violations.
type Func interface {
	Call(args []Value) (Value, error)
}

// FuncOf adapts an ordinary function to the Func interface.
type FuncOf func(args []Value) (Value, error)

// Call implements Func.
func (f FuncOf) Call(args []Value) (Value, error) { return f(args) }

// Registry maps function identifiers to implementations. Registration
// happens once at startup; the registry freezes when an engine first
// resolves with it and is safe for concurrent lookups thereafter.
type Registry struct {
	mu     sync.RWMutex
	fns    map[string]registration
	frozen bool
}

type registration struct {
	impl Func

	// needsState marks functions backed by auxiliary state (for example a
	// partition table) so the surrounding system can include that state
	// only when a model actually exercises the function.
	needsState bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]registration)}
}

// Register wires a function implementation under an identifier. needsState
// marks implementations that carry auxiliary lookup state. Registering
// after the registry has frozen, or reusing an identifier, is an error.
func (r *Registry) Register(id string, impl Func, needsState bool) error {
	if id == "" {
		return malformed("empty function identifier")
	}
	if impl == nil {
		return malformed("nil implementation for function %s", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return &frozenRegistryError{fn: id}
	}
	if _, exists := r.fns[id]; exists {
		return malformed("function %s registered twice", id)
	}
	r.fns[id] = registration{impl: impl, needsState: needsState}
	return nil
}

// Lookup returns the implementation registered under id.
func (r *Registry) Lookup(id string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.fns[id]
	if !ok {
		return nil, false
	}
	return reg.impl, true
}

// UsedFunctions returns the sorted identifiers of the functions the model
// exercises, in conditions and result expressions.
func (r *Registry) UsedFunctions(m *Model) []string {
	used := usedFunctions(m)
	ids := make([]string, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NeedsState reports whether any function the model exercises was
// registered with auxiliary state.
func (r *Registry) NeedsState(m *Model) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range usedFunctions(m) {
		if reg, ok := r.fns[id]; ok && reg.needsState {
			return true
		}
	}
	return false
}

// freeze marks the registry immutable. Called on the first resolution.
func (r *Registry) freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

type frozenRegistryError struct {
	fn string
}

func (e *frozenRegistryError) Error() string {
	return "registry is frozen, cannot register function " + e.fn
}
