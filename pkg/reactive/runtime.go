package reactive

import (
	"log/slog"
	"math"
	"slices"
	"sync"
)

// Runtime owns the resource arena shared by every scope, signal, emitter
// and effect created from it.
//
// A single mutex guards the arena. It is held only for bookkeeping and is
// never held while effect closures, callbacks or observers run.
type Runtime struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32

	// scopes counts live scopes.
	scopes int

	// inflight lists effects whose closure is currently executing.
	inflight []*effectNode

	// contexts maps goroutine ids to *trackingContext.
	contexts sync.Map

	logger    *slog.Logger
	observers []Observer
	budget    Budget
	debug     DebugConfig
}

// slot is one arena entry.
type slot struct {
	gen   uint32
	live  bool
	refs  int
	value any
	owner *Scope
}

// releaser is implemented by arena values that hold bookkeeping which must
// be cleared when their slot is freed. release runs with rt.mu held.
type releaser interface {
	release(rt *Runtime)
}

// NewRuntime creates an empty runtime.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		budget: DefaultBudget(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.logger == nil {
		rt.logger = slog.Default()
	}
	return rt
}

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

func kindOf(v any) Kind {
	switch v.(type) {
	case *effectNode:
		return KindEffect
	case *emitterNode:
		return KindEmitter
	case *callbackNode:
		return KindCallback
	default:
		return KindValue
	}
}

// allocLocked stores value in a free slot with a reference count of one.
func (rt *Runtime) allocLocked(value any) ResourceID {
	var index uint32
	if n := len(rt.free); n > 0 {
		index = rt.free[n-1]
		rt.free = rt.free[:n-1]
	} else {
		rt.slots = append(rt.slots, slot{})
		index = uint32(len(rt.slots) - 1)
	}

	// Generation 0 is reserved for the zero ResourceID. Slots whose
	// generation is exhausted never reach the free list, so this cannot wrap.
	s := &rt.slots[index]
	s.gen++
	s.live = true
	s.refs = 1
	s.value = value
	s.owner = nil
	return ResourceID{index: index, gen: s.gen}
}

// slotLocked resolves id. The returned pointer is valid until the next
// allocation.
func (rt *Runtime) slotLocked(id ResourceID) (*slot, bool) {
	if id.gen == 0 || int(id.index) >= len(rt.slots) {
		return nil, false
	}
	s := &rt.slots[id.index]
	if !s.live || s.gen != id.gen {
		return nil, false
	}
	return s, true
}

// releaseLocked drops one reference to id and frees the slot when it was
// the last one. Events describing the disposal are appended to events.
func (rt *Runtime) releaseLocked(id ResourceID, events []Event) ([]Event, error) {
	s, ok := rt.slotLocked(id)
	if !ok {
		return events, newResourceError("dispose", id, ErrDoubleDispose)
	}
	s.refs--
	if s.refs > 0 {
		return events, nil
	}

	value, owner := s.value, s.owner
	s.live = false
	s.value = nil
	s.owner = nil
	s.refs = 0
	if s.gen < math.MaxUint32 {
		rt.free = append(rt.free, id.index)
	}

	if owner != nil {
		if i := slices.Index(owner.managed, id); i >= 0 {
			owner.managed = slices.Delete(owner.managed, i, i+1)
		}
	}
	if r, ok := value.(releaser); ok {
		r.release(rt)
	}

	ev := Event{Type: EventResourceDisposed, Resource: id.String(), Kind: kindOf(value)}
	if owner != nil {
		ev.Scope = owner.id
	}
	return append(events, ev), nil
}

// Stats is a snapshot of arena occupancy.
type Stats struct {
	Resources int `json:"resources"`
	Values    int `json:"values"`
	Emitters  int `json:"emitters"`
	Effects   int `json:"effects"`
	Callbacks int `json:"callbacks"`
	Scopes    int `json:"scopes"`
	Inflight  int `json:"inflight"`
	Capacity  int `json:"capacity"`
}

// Stats returns a snapshot of the arena.
func (rt *Runtime) Stats() Stats {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	st := Stats{
		Scopes:   rt.scopes,
		Inflight: len(rt.inflight),
		Capacity: len(rt.slots),
	}
	for i := range rt.slots {
		s := &rt.slots[i]
		if !s.live {
			continue
		}
		st.Resources++
		switch kindOf(s.value) {
		case KindEffect:
			st.Effects++
		case KindEmitter:
			st.Emitters++
		case KindCallback:
			st.Callbacks++
		default:
			st.Values++
		}
	}
	return st
}

// warn logs err with its diagnostic code.
func (rt *Runtime) warn(msg string, err error, attrs ...any) {
	d := Diagnose(err)
	attrs = append(attrs, slog.String("code", d.Code), slog.String("error", err.Error()))
	rt.logger.Warn(msg, attrs...)
}

// staleAccess records a read or write through a handle whose resource is gone.
func (rt *Runtime) staleAccess(op string, id ResourceID, err error) {
	rt.warn("reactive: access to disposed resource", err,
		slog.String("op", op),
		slog.String("resource", id.String()))
	rt.observe(Event{Type: EventStaleAccess, Resource: id.String(), Op: op, Error: err.Error()})
}
