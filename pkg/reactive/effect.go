package reactive

import (
	"log/slog"
	"slices"
	"time"
)

// effectNode is the arena value behind an Effect. The effect stack refers
// to it by ResourceID only, so a disposed effect can never be reached
// through a stale stack entry.
type effectNode struct {
	self  ResourceID
	fn    func()
	name  string
	scope *Scope

	// deps are the emitters read during the current or last run, in first
	// read order, without duplicates.
	deps []ResourceID

	// rerun is set when an emitter in deps emits while the closure is
	// still running.
	rerun bool

	runs     uint64
	disposed bool
}

func (n *effectNode) release(rt *Runtime) {
	n.disposed = true
	for _, dep := range n.deps {
		rt.unsubscribeLocked(dep, n.self)
	}
	n.deps = nil
	if i := slices.Index(rt.inflight, n); i >= 0 {
		rt.inflight = slices.Delete(rt.inflight, i, i+1)
	}
}

// EffectOption configures an effect.
type EffectOption func(*effectNode)

// EffectName sets the name used for the effect in logs, traces and devtools.
func EffectName(name string) EffectOption {
	return func(n *effectNode) {
		n.name = name
	}
}

// Effect is a handle to a re-runnable computation.
type Effect struct {
	rt *Runtime
	id ResourceID
}

// CreateEffect creates an effect owned by scope and runs it once before
// returning. The effect re-runs whenever an emitter it read during its
// latest run emits, and is disposed with scope.
//
// An emit that happens while the effect's closure is still running, on an
// emitter the closure has already read, makes the effect run once more after
// the current run returns. This covers the effect writing a signal it read,
// and also a nested effect or callback writing it: either way the value the
// outer run saw is out of date.
//
// Example:
//
//	reactive.CreateEffect(scope, func() {
//	    fmt.Println("Count is:", count.Get())
//	})
func CreateEffect(scope *Scope, fn func(), opts ...EffectOption) Effect {
	rt := scope.rt
	node := &effectNode{
		fn:    fn,
		scope: scope,
	}
	for _, opt := range opts {
		opt(node)
	}

	rt.mu.Lock()
	id := rt.allocLocked(node)
	node.self = id
	err := scope.manageLocked(id)
	var events []Event
	if err != nil {
		events, _ = rt.releaseLocked(id, nil)
	}
	rt.mu.Unlock()

	rt.observe(Event{Type: EventResourceCreated, Resource: id.String(), Kind: KindEffect, Scope: scope.id, Name: node.name})
	if err != nil {
		rt.warn("reactive: effect created in disposed scope", err,
			slog.Uint64("scope", scope.id),
			slog.String("effect", node.name))
		rt.observeAll(events)
		return Effect{rt: rt, id: id}
	}

	rt.runEffect(id)
	return Effect{rt: rt, id: id}
}

// ID returns the effect's resource id, which is also its subscriber key.
func (e Effect) ID() ResourceID {
	return e.id
}

// Runs returns how many times the effect has run. A disposed effect
// reports zero.
func (e Effect) Runs() uint64 {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	if n, ok := e.rt.effectLocked(e.id); ok {
		return n.runs
	}
	return 0
}

// Dependencies returns the ids of the emitters the effect is subscribed to.
func (e Effect) Dependencies() []ResourceID {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	if n, ok := e.rt.effectLocked(e.id); ok {
		return slices.Clone(n.deps)
	}
	return nil
}

// Disposed reports whether the effect has been disposed.
func (e Effect) Disposed() bool {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	_, ok := e.rt.effectLocked(e.id)
	return !ok
}

// Dispose disposes the effect ahead of its scope.
func (e Effect) Dispose() error {
	return e.rt.Dispose(e.id)
}

func (rt *Runtime) effectLocked(id ResourceID) (*effectNode, bool) {
	s, ok := rt.slotLocked(id)
	if !ok {
		return nil, false
	}
	n, ok := s.value.(*effectNode)
	return n, ok
}

// runEffect runs the effect, then keeps re-running it while its own writes
// invalidated the run, up to the rerun budget.
func (rt *Runtime) runEffect(id ResourceID) {
	for attempt := 0; ; attempt++ {
		again, name := rt.runEffectOnce(id, attempt > 0)
		if !again {
			return
		}
		if attempt+1 >= rt.budget.MaxReruns {
			rt.budgetExceeded("rerun", id, name, slog.Int("reruns", attempt+1))
			return
		}
	}
}

// runEffectOnce performs one run and reports whether the effect must run
// again because an emitter it read emitted during the run.
func (rt *Runtime) runEffectOnce(id ResourceID, rerun bool) (bool, string) {
	// Clear stale dependencies.
	rt.mu.Lock()
	node, ok := rt.effectLocked(id)
	if !ok {
		rt.mu.Unlock()
		return false, ""
	}
	for _, dep := range node.deps {
		rt.unsubscribeLocked(dep, id)
	}
	node.deps = node.deps[:0]
	node.rerun = false
	rt.inflight = append(rt.inflight, node)
	fn, scope, name := node.fn, node.scope, node.name
	rt.mu.Unlock()

	completed := false
	defer func() {
		if completed {
			return
		}
		// the closure panicked; keep the in-flight list accurate
		rt.mu.Lock()
		if i := slices.Index(rt.inflight, node); i >= 0 {
			rt.inflight = slices.Delete(rt.inflight, i, i+1)
		}
		rt.mu.Unlock()
		rt.logger.Warn("reactive: effect panicked and has no dependencies left; it will not run again",
			slog.String("effect", name),
			slog.String("resource", id.String()))
	}()

	start := time.Now()
	tc := rt.enterTracking()
	func() {
		tc.push(id)
		defer func() {
			tc.pop(id)
			rt.exitTracking(tc)
		}()

		scope.acquireDropLock()
		defer scope.releaseDropLock()

		fn()
	}()
	elapsed := time.Since(start)
	completed = true

	// Re-subscribe to exactly what this run read.
	rt.mu.Lock()
	if i := slices.Index(rt.inflight, node); i >= 0 {
		rt.inflight = slices.Delete(rt.inflight, i, i+1)
	}
	again := false
	if !node.disposed {
		node.runs++
		for _, dep := range node.deps {
			rt.subscribeLocked(dep, id)
		}
		again = node.rerun
		node.rerun = false
	}
	rt.mu.Unlock()

	if rt.debug.LogEffectRuns {
		rt.logger.Debug("reactive: effect ran",
			slog.String("effect", name),
			slog.String("resource", id.String()),
			slog.Duration("duration", elapsed),
			slog.Bool("rerun", rerun))
	}
	rt.observe(Event{
		Type:     EventEffectRun,
		Time:     start,
		Resource: id.String(),
		Kind:     KindEffect,
		Scope:    scope.id,
		Name:     name,
		Duration: elapsed,
		Rerun:    rerun,
	})
	return again, name
}

// budgetExceeded reports a tripped budget check.
func (rt *Runtime) budgetExceeded(op string, id ResourceID, name string, attrs ...any) {
	err := newResourceError(op, id, ErrBudgetExceeded)
	attrs = append(attrs, slog.String("resource", id.String()))
	if name != "" {
		attrs = append(attrs, slog.String("effect", name))
	}
	rt.warn("reactive: budget exceeded", err, attrs...)
	if rt.debug.LogBudget {
		rt.logger.Debug("reactive: budget", slog.Int("max_reruns", rt.budget.MaxReruns), slog.Int("max_emit_depth", rt.budget.MaxEmitDepth))
	}
	rt.observe(Event{Type: EventBudgetExceeded, Resource: id.String(), Name: name, Op: op, Error: err.Error()})
}
