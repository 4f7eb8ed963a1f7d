package reactive

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// emitterNode is the arena value behind a CallbackEmitter.
type emitterNode struct {
	// subs maps subscriber ids to their registration sequence. Holding an
	// id keeps nothing alive; dead ids are skipped by Emit.
	subs map[ResourceID]uint64
}

func (n *emitterNode) release(*Runtime) {
	n.subs = nil
}

// callbackNode is the arena value behind a Callback.
type callbackNode struct {
	invoke func(ev any)
}

// CallbackEmitter is a multicast notification list.
//
// Subscriptions are consumed by Emit: each Emit takes the current table,
// leaves an empty one behind and then delivers. A subscriber that wants the
// next event must subscribe again; effects do so after every run, and
// Listen does it for plain callbacks.
type CallbackEmitter[E any] struct {
	rt *Runtime
	id ResourceID
}

// NewCallbackEmitter creates an emitter managed by scope.
func NewCallbackEmitter[E any](scope *Scope) CallbackEmitter[E] {
	rt := scope.rt
	return CallbackEmitter[E]{rt: rt, id: rt.allocManaged(scope, &emitterNode{}, "emitter")}
}

// ID returns the emitter's resource id.
func (e CallbackEmitter[E]) ID() ResourceID {
	return e.id
}

// Subscribe registers cb by its identity. Subscribing the same callback
// again overwrites the entry and keeps its original position.
func (e CallbackEmitter[E]) Subscribe(cb Callback[E]) {
	e.SubscribeWeak(cb.id)
}

// SubscribeWeak registers a subscriber by id. The id may name an effect or
// a callback; if it is already dead it is dropped at the next Emit.
func (e CallbackEmitter[E]) SubscribeWeak(id ResourceID) {
	e.rt.mu.Lock()
	e.rt.subscribeLocked(e.id, id)
	e.rt.mu.Unlock()
}

// Unsubscribe removes the subscriber with the given key. Unknown keys and
// repeated calls are no-ops.
func (e CallbackEmitter[E]) Unsubscribe(key ResourceID) {
	e.rt.mu.Lock()
	e.rt.unsubscribeLocked(e.id, key)
	e.rt.mu.Unlock()
}

// Len returns the number of registered subscribers, dead or alive.
func (e CallbackEmitter[E]) Len() int {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	if n, ok := e.rt.emitterLocked(e.id); ok {
		return len(n.subs)
	}
	return 0
}

// Track records the emitter as a dependency of the innermost running
// effect on this goroutine. Outside an effect it does nothing.
func (e CallbackEmitter[E]) Track() {
	e.rt.track(e.id)
}

// Emit delivers ev to every live subscriber, most recently registered
// first. Each subscriber is reached at most once per call: the table is
// swapped out before delivery begins, so an Emit re-entered from a
// subscriber only sees subscriptions made after this one started.
func (e CallbackEmitter[E]) Emit(ev E) {
	e.rt.emit(e.id, ev)
}

// Dispose releases the emitter.
func (e CallbackEmitter[E]) Dispose() error {
	return e.rt.Dispose(e.id)
}

// Callback is an arena-resident subscriber for a CallbackEmitter.
type Callback[E any] struct {
	rt *Runtime
	id ResourceID
}

// NewCallback creates a callback managed by scope.
func NewCallback[E any](scope *Scope, fn func(E)) Callback[E] {
	rt := scope.rt
	node := &callbackNode{
		invoke: func(ev any) {
			v, ok := ev.(E)
			if !ok && ev != nil {
				rt.warn("reactive: callback received foreign event", mismatch("emit", ResourceID{}, ev, v))
				return
			}
			fn(v)
		},
	}
	return Callback[E]{rt: rt, id: rt.allocManaged(scope, node, "callback")}
}

// ID returns the callback's resource id, which is also its subscriber key.
func (c Callback[E]) ID() ResourceID {
	return c.id
}

// Dispose releases the callback. Emitters still listing it skip it.
func (c Callback[E]) Dispose() error {
	return c.rt.Dispose(c.id)
}

// Listen subscribes fn to every future Emit on em until scope is disposed.
// The returned callback re-subscribes itself on each delivery. Events
// emitted on em while fn is running, including from fn itself, are queued
// and handed to fn in order once it returns. Consecutive queued deliveries
// are bounded by the rerun budget.
func Listen[E any](scope *Scope, em CallbackEmitter[E], fn func(E)) Callback[E] {
	rt := scope.rt
	var (
		cb      Callback[E]
		mu      sync.Mutex
		running bool
		queued  []E
	)
	cb = NewCallback(scope, func(ev E) {
		em.Subscribe(cb)

		mu.Lock()
		if running {
			queued = append(queued, ev)
			mu.Unlock()
			return
		}
		running = true
		mu.Unlock()

		completed := false
		defer func() {
			if !completed {
				mu.Lock()
				running, queued = false, nil
				mu.Unlock()
			}
		}()

		for attempt := 0; ; attempt++ {
			fn(ev)

			mu.Lock()
			if len(queued) == 0 {
				running = false
				mu.Unlock()
				completed = true
				return
			}
			if attempt+1 >= rt.budget.MaxReruns {
				dropped := len(queued)
				running, queued = false, nil
				mu.Unlock()
				completed = true
				rt.budgetExceeded("listen", cb.id, "", slog.Int("reruns", attempt+1), slog.Int("dropped", dropped))
				return
			}
			ev, queued = queued[0], queued[1:]
			mu.Unlock()
		}
	})
	em.Subscribe(cb)
	return cb
}

// allocManaged allocates value and hands it to scope. On a disposed scope
// the slot is freed again at once and the stale id is returned.
func (rt *Runtime) allocManaged(scope *Scope, value any, op string) ResourceID {
	rt.mu.Lock()
	id := rt.allocLocked(value)
	err := scope.manageLocked(id)
	var events []Event
	if err != nil {
		events, _ = rt.releaseLocked(id, nil)
	}
	rt.mu.Unlock()

	rt.observe(Event{Type: EventResourceCreated, Resource: id.String(), Kind: kindOf(value), Scope: scope.id})
	if err != nil {
		rt.warn("reactive: "+op+" created in disposed scope", err, slog.Uint64("scope", scope.id))
		rt.observeAll(events)
	}
	return id
}

func (rt *Runtime) emitterLocked(id ResourceID) (*emitterNode, bool) {
	s, ok := rt.slotLocked(id)
	if !ok {
		return nil, false
	}
	n, ok := s.value.(*emitterNode)
	return n, ok
}

func (rt *Runtime) subscribeLocked(emitter, subscriber ResourceID) {
	n, ok := rt.emitterLocked(emitter)
	if !ok {
		return
	}
	if _, exists := n.subs[subscriber]; exists {
		return
	}
	if n.subs == nil {
		n.subs = make(map[ResourceID]uint64)
	}
	n.subs[subscriber] = nextID()
}

func (rt *Runtime) unsubscribeLocked(emitter, subscriber ResourceID) {
	if n, ok := rt.emitterLocked(emitter); ok {
		delete(n.subs, subscriber)
	}
}

func (rt *Runtime) track(emitter ResourceID) {
	top, ok := rt.currentEffect()
	if !ok {
		return
	}
	rt.mu.Lock()
	if node, ok := rt.effectLocked(top); ok && !slices.Contains(node.deps, emitter) {
		node.deps = append(node.deps, emitter)
	}
	rt.mu.Unlock()
}

type subscriberEntry struct {
	id  ResourceID
	seq uint64
}

func (rt *Runtime) emit(emitter ResourceID, ev any) {
	tc := rt.enterTracking()
	defer rt.exitTracking(tc)

	if tc.emitDepth >= rt.budget.MaxEmitDepth {
		rt.budgetExceeded("emit", emitter, "", slog.Int("depth", tc.emitDepth))
		return
	}

	rt.mu.Lock()
	n, ok := rt.emitterLocked(emitter)
	if !ok {
		rt.mu.Unlock()
		rt.logger.Debug("reactive: emit on disposed emitter", slog.String("resource", emitter.String()))
		return
	}
	taken := n.subs
	n.subs = nil

	// An effect that already read this emitter in its current run is not
	// subscribed yet; it reruns once its run completes.
	for _, running := range rt.inflight {
		if slices.Contains(running.deps, emitter) {
			running.rerun = true
		}
	}
	rt.mu.Unlock()

	order := make([]subscriberEntry, 0, len(taken))
	for id, seq := range taken {
		order = append(order, subscriberEntry{id: id, seq: seq})
	}
	slices.SortFunc(order, func(a, b subscriberEntry) int {
		switch {
		case a.seq > b.seq:
			return -1
		case a.seq < b.seq:
			return 1
		default:
			return 0
		}
	})

	start := time.Now()
	tc.emitDepth++
	delivered := 0
	func() {
		defer func() { tc.emitDepth-- }()
		for _, sub := range order {
			if rt.deliver(sub.id, ev) {
				delivered++
			}
		}
	}()

	rt.observe(Event{
		Type:      EventEmit,
		Time:      start,
		Resource:  emitter.String(),
		Kind:      KindEmitter,
		Duration:  time.Since(start),
		Delivered: delivered,
	})
}

// deliver invokes one subscriber. It reports false for dead subscribers.
func (rt *Runtime) deliver(id ResourceID, ev any) bool {
	rt.mu.Lock()
	s, ok := rt.slotLocked(id)
	if !ok {
		rt.mu.Unlock()
		return false
	}
	switch v := s.value.(type) {
	case *effectNode:
		rt.mu.Unlock()
		rt.runEffect(id)
		return true
	case *callbackNode:
		invoke := v.invoke
		rt.mu.Unlock()
		invoke(ev)
		return true
	default:
		rt.mu.Unlock()
		return false
	}
}
