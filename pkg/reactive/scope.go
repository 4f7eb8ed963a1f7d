package reactive

import (
	"log/slog"
	"slices"
)

// Scope is a node in the ownership tree. Disposing a scope disposes its
// child scopes (last created first), then the resources registered with
// Manage (last registered first), then its cleanup functions.
//
// Every effect holds its scope's drop lock while its closure runs, and the
// lock is counted on every ancestor too. A scope whose drop lock is held
// defers Dispose until the last running effect beneath it returns.
type Scope struct {
	rt *Runtime
	id uint64

	// parent is nil for root scopes.
	parent *Scope

	// All fields below are guarded by rt.mu.
	children []*Scope
	managed  []ResourceID
	cleanups []func()

	dropLock       int
	pendingDispose bool
	disposed       bool
}

// NewScope creates a root scope.
func (rt *Runtime) NewScope() *Scope {
	return rt.newScope(nil)
}

// Child creates a scope owned by s. A child of a disposed scope is born
// disposed.
func (s *Scope) Child() *Scope {
	return s.rt.newScope(s)
}

func (rt *Runtime) newScope(parent *Scope) *Scope {
	s := &Scope{
		rt:     rt,
		id:     nextID(),
		parent: parent,
	}

	rt.mu.Lock()
	if parent != nil && parent.disposed {
		s.disposed = true
		rt.mu.Unlock()
		rt.warn("reactive: child scope of disposed scope", newResourceError("child", ResourceID{}, ErrScopeDisposed),
			slog.Uint64("scope", parent.id))
		return s
	}
	rt.scopes++
	if parent != nil {
		parent.children = append(parent.children, s)
	}
	rt.mu.Unlock()
	return s
}

// ID returns the unique identifier for this scope.
func (s *Scope) ID() uint64 {
	return s.id
}

// Parent returns the parent scope, or nil for a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Runtime returns the runtime the scope belongs to.
func (s *Scope) Runtime() *Runtime {
	return s.rt
}

// Disposed reports whether the scope has been torn down.
// A scope whose disposal is deferred is not yet disposed.
func (s *Scope) Disposed() bool {
	s.rt.mu.Lock()
	defer s.rt.mu.Unlock()
	return s.disposed
}

// OnCleanup registers fn to run when the scope is disposed, after its
// resources are released. On a disposed scope fn runs immediately.
func (s *Scope) OnCleanup(fn func()) {
	s.rt.mu.Lock()
	if s.disposed {
		s.rt.mu.Unlock()
		fn()
		return
	}
	s.cleanups = append(s.cleanups, fn)
	s.rt.mu.Unlock()
}

// manageLocked makes s the owner of id.
func (s *Scope) manageLocked(id ResourceID) error {
	sl, ok := s.rt.slotLocked(id)
	if !ok {
		return newResourceError("manage", id, ErrStaleAccess)
	}
	if sl.owner == s {
		return nil
	}
	if sl.owner != nil {
		return newResourceError("manage", id, ErrAlreadyManaged)
	}
	if s.disposed {
		return newResourceError("manage", id, ErrScopeDisposed)
	}
	sl.owner = s
	s.managed = append(s.managed, id)
	return nil
}

// Dispose tears the scope down. If an effect in this scope or a
// descendant is running, teardown is deferred until it returns.
// Calling Dispose more than once is a no-op.
func (s *Scope) Dispose() {
	rt := s.rt
	rt.mu.Lock()
	if s.disposed {
		rt.mu.Unlock()
		return
	}
	if s.dropLock > 0 {
		first := !s.pendingDispose
		s.pendingDispose = true
		lock := s.dropLock
		rt.mu.Unlock()

		if first {
			if rt.debug.LogDisposals {
				rt.logger.Debug("reactive: scope disposal deferred",
					slog.Uint64("scope", s.id),
					slog.Int("drop_lock", lock))
			}
			rt.observe(Event{Type: EventScopeDeferred, Scope: s.id})
		}
		return
	}
	rt.mu.Unlock()

	s.teardown()
}

// teardown disposes the scope unconditionally. Callers guarantee the drop
// lock is clear.
func (s *Scope) teardown() {
	rt := s.rt

	rt.mu.Lock()
	if s.disposed {
		rt.mu.Unlock()
		return
	}
	s.disposed = true
	s.pendingDispose = false
	rt.scopes--
	if p := s.parent; p != nil {
		if i := slices.Index(p.children, s); i >= 0 {
			p.children = slices.Delete(p.children, i, i+1)
		}
	}
	children := s.children
	s.children = nil
	rt.mu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].teardown()
	}

	rt.mu.Lock()
	managed := s.managed
	s.managed = nil
	var events []Event
	for i := len(managed) - 1; i >= 0; i-- {
		sl, ok := rt.slotLocked(managed[i])
		if !ok {
			continue
		}
		sl.owner = nil
		events, _ = rt.releaseLocked(managed[i], events)
	}
	cleanups := s.cleanups
	s.cleanups = nil
	rt.mu.Unlock()

	rt.observeAll(events)
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}

	if rt.debug.LogDisposals {
		rt.logger.Debug("reactive: scope disposed",
			slog.Uint64("scope", s.id),
			slog.Int("children", len(children)),
			slog.Int("resources", len(managed)))
	}
	rt.observe(Event{Type: EventScopeDisposed, Scope: s.id})
}

// acquireDropLock marks s and its ancestors as having a running effect.
func (s *Scope) acquireDropLock() {
	s.rt.mu.Lock()
	for p := s; p != nil; p = p.parent {
		p.dropLock++
	}
	s.rt.mu.Unlock()
}

// releaseDropLock undoes acquireDropLock and performs any disposal that
// was deferred while the lock was held, innermost scope first.
func (s *Scope) releaseDropLock() {
	rt := s.rt
	rt.mu.Lock()
	var ready []*Scope
	for p := s; p != nil; p = p.parent {
		p.dropLock--
		if p.dropLock == 0 && p.pendingDispose && !p.disposed {
			ready = append(ready, p)
		}
	}
	rt.mu.Unlock()

	for _, p := range ready {
		p.teardown()
	}
}
