package reactive

import "fmt"

// Resource is a typed handle to an arena slot holding a T.
//
// A new Resource has a reference count of one and no owning scope. It must
// either be handed to a scope with Manage or released with Dispose;
// otherwise it stays in the arena for the life of the Runtime.
type Resource[T any] struct {
	rt *Runtime
	id ResourceID
}

// NewResource stores value in the arena.
func NewResource[T any](rt *Runtime, value T) Resource[T] {
	rt.mu.Lock()
	id := rt.allocLocked(value)
	rt.mu.Unlock()

	rt.observe(Event{Type: EventResourceCreated, Resource: id.String(), Kind: KindValue})
	return Resource[T]{rt: rt, id: id}
}

// ID returns the resource id.
func (r Resource[T]) ID() ResourceID {
	return r.id
}

// Runtime returns the runtime the resource lives in.
func (r Resource[T]) Runtime() *Runtime {
	return r.rt
}

// Get returns a copy of the stored value.
func (r Resource[T]) Get() (T, error) {
	return Fetch[T](r.rt, r.id)
}

// Set replaces the stored value.
func (r Resource[T]) Set(value T) error {
	rt := r.rt
	rt.mu.Lock()
	defer rt.mu.Unlock()

	s, ok := rt.slotLocked(r.id)
	if !ok {
		return newResourceError("set", r.id, ErrStaleAccess)
	}
	if _, ok := s.value.(T); !ok && s.value != nil {
		return mismatch("set", r.id, s.value, value)
	}
	s.value = value
	return nil
}

// Manage registers the resource for disposal when scope is torn down.
func (r Resource[T]) Manage(scope *Scope) error {
	return r.rt.Manage(r.id, scope)
}

// Reference adds a strong reference.
func (r Resource[T]) Reference() error {
	return r.rt.Reference(r.id)
}

// Dispose drops a strong reference, freeing the slot on the last one.
func (r Resource[T]) Dispose() error {
	return r.rt.Dispose(r.id)
}

// Lookup returns the value stored under id.
func (rt *Runtime) Lookup(id ResourceID) (any, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	s, ok := rt.slotLocked(id)
	if !ok {
		return nil, newResourceError("get", id, ErrStaleAccess)
	}
	return s.value, nil
}

// Fetch returns the value stored under id as a T.
func Fetch[T any](rt *Runtime, id ResourceID) (T, error) {
	var zero T
	v, err := rt.Lookup(id)
	if err != nil {
		return zero, err
	}
	if v == nil {
		// a nil interface value stored by an interface-typed resource
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, mismatch("get", id, v, zero)
	}
	return out, nil
}

// Reference adds a strong reference to id.
func (rt *Runtime) Reference(id ResourceID) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	s, ok := rt.slotLocked(id)
	if !ok {
		return newResourceError("reference", id, ErrStaleAccess)
	}
	s.refs++
	return nil
}

// Dispose drops a strong reference to id. The slot is freed when the last
// reference goes; from then on id never resolves again. Disposing an id
// that is already freed returns ErrDoubleDispose.
func (rt *Runtime) Dispose(id ResourceID) error {
	rt.mu.Lock()
	events, err := rt.releaseLocked(id, nil)
	rt.mu.Unlock()

	rt.observeAll(events)
	return err
}

// Manage registers id for disposal when scope is torn down.
func (rt *Runtime) Manage(id ResourceID, scope *Scope) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return scope.manageLocked(id)
}

func mismatch(op string, id ResourceID, got, want any) *ResourceError {
	return &ResourceError{
		Op:   op,
		ID:   id,
		Err:  ErrTypeMismatch,
		Want: fmt.Sprintf("%T", want),
		Got:  fmt.Sprintf("%T", got),
	}
}
