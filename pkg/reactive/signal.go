package reactive

import "errors"

// Signal is a reactive value cell: one arena value plus one emitter.
//
// Reading with Get inside an effect makes the effect depend on the signal.
// Every Set notifies dependents, including writes of an equal value; code
// that uses a Set to force dependents to run (a redraw request, say)
// relies on that.
//
// A Signal is a borrowed handle: it is valid while the scope that created
// it is alive. Use Share for a handle that must outlive the scope.
type Signal[T any] struct {
	value   Resource[T]
	emitter CallbackEmitter[struct{}]
}

// CreateSignal creates a signal managed by scope.
func CreateSignal[T any](scope *Scope, initial T) Signal[T] {
	rt := scope.rt
	return Signal[T]{
		value:   Resource[T]{rt: rt, id: rt.allocManaged(scope, initial, "signal")},
		emitter: CallbackEmitter[struct{}]{rt: rt, id: rt.allocManaged(scope, &emitterNode{}, "signal")},
	}
}

// Get returns the current value and records the signal as a dependency of
// the running effect. On a disposed signal it logs and returns the zero
// value.
func (s Signal[T]) Get() T {
	v := s.GetUntracked()
	s.emitter.Track()
	return v
}

// GetUntracked returns the current value without recording a dependency.
func (s Signal[T]) GetUntracked() T {
	v, err := s.value.Get()
	if err != nil {
		s.value.rt.staleAccess("signal.get", s.value.id, err)
	}
	return v
}

// TryGet is Get that reports stale access as an error instead of logging.
func (s Signal[T]) TryGet() (T, error) {
	v, err := s.value.Get()
	if err != nil {
		return v, err
	}
	s.emitter.Track()
	return v, nil
}

// Set stores value and notifies every subscriber exactly once.
// No equality check is made against the previous value.
func (s Signal[T]) Set(value T) {
	if err := s.value.Set(value); err != nil {
		s.value.rt.staleAccess("signal.set", s.value.id, err)
		return
	}
	s.emitter.Emit(struct{}{})
}

// Update sets the signal to fn applied to its current value.
// The read is untracked.
func (s Signal[T]) Update(fn func(T) T) {
	s.Set(fn(s.GetUntracked()))
}

// ID returns the id of the signal's value resource.
func (s Signal[T]) ID() ResourceID {
	return s.value.id
}

// Resource returns the signal's value resource.
func (s Signal[T]) Resource() Resource[T] {
	return s.value
}

// Emitter returns the emitter that notifies the signal's dependents.
func (s Signal[T]) Emitter() CallbackEmitter[struct{}] {
	return s.emitter
}

// Dispose releases the signal ahead of its scope.
func (s Signal[T]) Dispose() error {
	return errors.Join(s.value.Dispose(), s.emitter.Dispose())
}

// Share returns a reference-counted handle to the signal. The shared
// handle keeps the signal alive after its scope is disposed, until every
// shared handle is released.
func (s Signal[T]) Share() (*SharedSignal[T], error) {
	if err := s.value.Reference(); err != nil {
		return nil, err
	}
	if err := s.emitter.rt.Reference(s.emitter.id); err != nil {
		_ = s.value.Dispose()
		return nil, err
	}
	return &SharedSignal[T]{sig: s}, nil
}
