package reactive

import (
	"fmt"
	"time"
)

// EventType identifies a runtime event.
type EventType uint8

const (
	EventResourceCreated EventType = iota + 1
	EventResourceDisposed
	EventEffectRun
	EventEmit
	EventScopeDisposed
	EventScopeDeferred
	EventStaleAccess
	EventBudgetExceeded
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EventResourceCreated:
		return "resource_created"
	case EventResourceDisposed:
		return "resource_disposed"
	case EventEffectRun:
		return "effect_run"
	case EventEmit:
		return "emit"
	case EventScopeDisposed:
		return "scope_disposed"
	case EventScopeDeferred:
		return "scope_deferred"
	case EventStaleAccess:
		return "stale_access"
	case EventBudgetExceeded:
		return "budget_exceeded"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EventType) UnmarshalText(text []byte) error {
	parsed, ok := ParseEventType(string(text))
	if !ok {
		return fmt.Errorf("reactive: unknown event type %q", text)
	}
	*t = parsed
	return nil
}

// ParseEventType returns the event type named s, as produced by String.
func ParseEventType(s string) (EventType, bool) {
	for t := EventResourceCreated; t <= EventBudgetExceeded; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// Kind is the kind of value held by an arena slot.
type Kind uint8

const (
	KindValue Kind = iota + 1
	KindEmitter
	KindEffect
	KindCallback
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindEmitter:
		return "emitter"
	case KindEffect:
		return "effect"
	case KindCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for c := KindValue; c <= KindCallback; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("reactive: unknown kind %q", text)
}

// Event is a single observation of runtime activity.
// Only the fields relevant to Type are set.
type Event struct {
	Type     EventType     `json:"type"`
	Time     time.Time     `json:"time"`
	Resource string        `json:"resource,omitempty"`
	Kind     Kind          `json:"kind,omitempty"`
	Scope    uint64        `json:"scope,omitempty"`
	Name     string        `json:"name,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`

	// Delivered is the number of live subscribers an Emit reached.
	Delivered int `json:"delivered,omitempty"`

	// Rerun is set on effect runs triggered by the effect's own write.
	Rerun bool `json:"rerun,omitempty"`

	Op    string `json:"op,omitempty"`
	Error string `json:"error,omitempty"`
}

// Observer receives runtime events. Observe is called synchronously on the
// goroutine that caused the event and never while the arena is locked.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev Event) { f(ev) }

func (rt *Runtime) observe(ev Event) {
	if len(rt.observers) == 0 {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	for _, o := range rt.observers {
		o.Observe(ev)
	}
}

func (rt *Runtime) observeAll(events []Event) {
	for _, ev := range events {
		rt.observe(ev)
	}
}
