package reactive

// eventValue is the payload of an EventSignal: an optional value plus a
// sequence number distinguishing successive events.
type eventValue[T any] struct {
	value T
	seq   uint64
	ok    bool
}

// EventSignal carries discrete events rather than state. Subscribers see
// only events emitted after they subscribed.
type EventSignal[T any] struct {
	sig Signal[eventValue[T]]
}

// NewEventSignal creates an event signal managed by scope.
func NewEventSignal[T any](scope *Scope) EventSignal[T] {
	return EventSignal[T]{sig: CreateSignal(scope, eventValue[T]{})}
}

// Emit delivers v to every subscriber.
func (e EventSignal[T]) Emit(v T) {
	cur := e.sig.GetUntracked()
	e.sig.Set(eventValue[T]{value: v, seq: cur.seq + 1, ok: true})
}

// Latest returns the most recent event, if any. It does not track.
func (e EventSignal[T]) Latest() (T, bool) {
	cur := e.sig.GetUntracked()
	return cur.value, cur.ok
}

// On calls fn for each event emitted after the call, until scope is
// disposed. fn runs untracked. When events are emitted from inside fn,
// the follow-up run delivers the latest of them.
func (e EventSignal[T]) On(scope *Scope, fn func(T)) Effect {
	rt := scope.rt
	seen := e.sig.GetUntracked().seq
	return CreateEffect(scope, func() {
		ev := e.sig.Get()
		if !ev.ok || ev.seq <= seen {
			return
		}
		seen = ev.seq
		rt.Untrack(func() {
			fn(ev.value)
		})
	}, EffectName("event"))
}

// Dispose releases the event signal ahead of its scope.
func (e EventSignal[T]) Dispose() error {
	return e.sig.Dispose()
}
