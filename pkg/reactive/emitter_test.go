package reactive

import (
	"slices"
	"testing"
)

func TestEmitReverseRegistrationOrder(t *testing.T) {
	_, root := newTestRuntime(t)

	em := NewCallbackEmitter[int](root)
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		em.Subscribe(NewCallback(root, func(int) { order = append(order, name) }))
	}

	em.Emit(1)

	if want := []string{"c", "b", "a"}; !slices.Equal(order, want) {
		t.Errorf("delivery order = %v, want %v", order, want)
	}
}

func TestSubscribeTwiceKeepsPosition(t *testing.T) {
	_, root := newTestRuntime(t)

	em := NewCallbackEmitter[int](root)
	var order []string
	a := NewCallback(root, func(int) { order = append(order, "a") })
	b := NewCallback(root, func(int) { order = append(order, "b") })

	em.Subscribe(a)
	em.Subscribe(b)
	em.Subscribe(a)

	if got := em.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	em.Emit(0)
	if want := []string{"b", "a"}; !slices.Equal(order, want) {
		t.Errorf("delivery order = %v, want %v", order, want)
	}
}

func TestEmitConsumesSubscriptions(t *testing.T) {
	_, root := newTestRuntime(t)

	em := NewCallbackEmitter[string](root)
	var got []string
	cb := NewCallback(root, func(s string) { got = append(got, s) })
	em.Subscribe(cb)

	em.Emit("first")
	em.Emit("second")

	if !slices.Equal(got, []string{"first"}) {
		t.Errorf("received %v, want only the first event", got)
	}
	if em.Len() != 0 {
		t.Errorf("Len() = %d after Emit, want 0", em.Len())
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	_, root := newTestRuntime(t)

	em := NewCallbackEmitter[int](root)
	calls := 0
	cb := NewCallback(root, func(int) { calls++ })

	em.Subscribe(cb)
	em.Unsubscribe(cb.ID())
	em.Unsubscribe(cb.ID())
	em.Unsubscribe(ResourceID{})

	em.Emit(1)
	if calls != 0 {
		t.Errorf("calls = %d after Unsubscribe, want 0", calls)
	}
}

func TestEmitSkipsDeadSubscribers(t *testing.T) {
	rec := &eventRecorder{}
	_, root := newTestRuntime(t, WithObserver(rec))

	em := NewCallbackEmitter[int](root)
	calls := 0
	dead := NewCallback(root, func(int) { calls++ })
	live := NewCallback(root, func(int) {})
	em.Subscribe(dead)
	em.Subscribe(live)
	if err := dead.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}

	rec.reset()
	em.Emit(1)

	if calls != 0 {
		t.Errorf("disposed callback ran %d times", calls)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, ev := range rec.events {
		if ev.Type == EventEmit && ev.Delivered != 1 {
			t.Errorf("Delivered = %d, want 1", ev.Delivered)
		}
	}
}

func TestReentrantEmitDeliversAtMostOnce(t *testing.T) {
	_, root := newTestRuntime(t)

	em := NewCallbackEmitter[int](root)
	xCalls, yCalls := 0, 0
	x := NewCallback(root, func(int) { xCalls++ })
	y := NewCallback(root, func(int) {
		yCalls++
		if yCalls == 1 {
			em.Emit(2)
		}
	})
	em.Subscribe(x)
	em.Subscribe(y)

	em.Emit(1)

	if xCalls != 1 || yCalls != 1 {
		t.Errorf("calls x=%d y=%d, want 1/1", xCalls, yCalls)
	}
}

func TestListen(t *testing.T) {
	_, root := newTestRuntime(t)

	scope := root.Child()
	em := NewCallbackEmitter[int](root)
	var got []int
	Listen(scope, em, func(v int) { got = append(got, v) })

	em.Emit(1)
	em.Emit(2)
	em.Emit(3)
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Fatalf("received %v, want [1 2 3]", got)
	}

	scope.Dispose()
	em.Emit(4)
	if len(got) != 3 {
		t.Errorf("listener ran after its scope was disposed: %v", got)
	}
}

func TestListenEmitFromHandler(t *testing.T) {
	_, root := newTestRuntime(t)

	em := NewCallbackEmitter[int](root)
	var got []int
	Listen(root, em, func(v int) {
		got = append(got, v)
		if v < 3 {
			em.Emit(v + 1)
		}
	})

	em.Emit(1)
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Fatalf("received %v, want [1 2 3]", got)
	}

	em.Emit(10)
	if !slices.Equal(got, []int{1, 2, 3, 10}) {
		t.Errorf("received %v, want [1 2 3 10]", got)
	}
}

func TestListenQueuedDeliveryBudget(t *testing.T) {
	rec := &eventRecorder{}
	_, root := newTestRuntime(t, WithBudget(Budget{MaxReruns: 5}), WithObserver(rec))

	em := NewCallbackEmitter[int](root)
	var got []int
	Listen(root, em, func(v int) {
		got = append(got, v)
		em.Emit(v + 1)
	})

	em.Emit(1)
	if !slices.Equal(got, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("received %v, want [1 2 3 4 5]", got)
	}
	if n := rec.count(EventBudgetExceeded); n != 1 {
		t.Errorf("budget events = %d, want 1", n)
	}
	if em.Len() != 1 {
		t.Errorf("listener should stay subscribed, Len() = %d", em.Len())
	}
}

func TestSubscribeWeakEffect(t *testing.T) {
	_, root := newTestRuntime(t)

	em := NewCallbackEmitter[struct{}](root)
	e := CreateEffect(root, func() {})
	em.SubscribeWeak(e.ID())

	em.Emit(struct{}{})
	if got := e.Runs(); got != 2 {
		t.Errorf("Runs() = %d, want 2", got)
	}
}

func TestCallbackForeignEvent(t *testing.T) {
	_, root := newTestRuntime(t)

	em := NewCallbackEmitter[string](root)
	called := false
	cb := NewCallback(root, func(int) { called = true })
	em.SubscribeWeak(cb.ID())

	em.Emit("not an int")
	if called {
		t.Error("callback invoked with an event of the wrong type")
	}
}

func TestTrackOutsideEffect(t *testing.T) {
	rt, root := newTestRuntime(t)

	em := NewCallbackEmitter[int](root)
	em.Track()
	if n := contextCount(rt); n != 0 {
		t.Errorf("Track outside an effect left %d contexts", n)
	}
}

func TestEmitOnDisposedEmitter(t *testing.T) {
	_, root := newTestRuntime(t)

	em := NewCallbackEmitter[int](root)
	calls := 0
	em.Subscribe(NewCallback(root, func(int) { calls++ }))
	if err := em.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}

	em.Emit(1)
	em.Subscribe(NewCallback(root, func(int) { calls++ }))
	if calls != 0 || em.Len() != 0 {
		t.Errorf("disposed emitter delivered %d events, Len() = %d", calls, em.Len())
	}
}
