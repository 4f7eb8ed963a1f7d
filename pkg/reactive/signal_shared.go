package reactive

import "sync/atomic"

// SharedSignal is a reference-counted signal handle for callbacks that
// outlive the stack frame, or the scope, that defined the signal.
// Each SharedSignal holds one reference and must be released exactly once.
type SharedSignal[T any] struct {
	sig      Signal[T]
	released atomic.Bool
}

// Clone returns a new handle holding its own reference.
func (s *SharedSignal[T]) Clone() (*SharedSignal[T], error) {
	if s.released.Load() {
		return nil, newResourceError("clone", s.sig.ID(), ErrStaleAccess)
	}
	return s.sig.Share()
}

// Release drops this handle's reference. Releasing twice returns
// ErrDoubleDispose.
func (s *SharedSignal[T]) Release() error {
	if s.released.Swap(true) {
		return newResourceError("release", s.sig.ID(), ErrDoubleDispose)
	}
	return s.sig.Dispose()
}

// Signal returns the borrowed handle.
func (s *SharedSignal[T]) Signal() Signal[T] {
	return s.sig
}

// Get returns the current value and records a dependency.
func (s *SharedSignal[T]) Get() T {
	return s.sig.Get()
}

// GetUntracked returns the current value without recording a dependency.
func (s *SharedSignal[T]) GetUntracked() T {
	return s.sig.GetUntracked()
}

// Set stores value and notifies subscribers.
func (s *SharedSignal[T]) Set(value T) {
	s.sig.Set(value)
}

// Update sets the signal to fn applied to its current value.
func (s *SharedSignal[T]) Update(fn func(T) T) {
	s.sig.Update(fn)
}
