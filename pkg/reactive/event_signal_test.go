package reactive

import (
	"slices"
	"testing"
)

func TestEventSignalDeliversOnlyNewEvents(t *testing.T) {
	_, root := newTestRuntime(t)

	ev := NewEventSignal[string](root)
	if _, ok := ev.Latest(); ok {
		t.Error("Latest() reported an event before any Emit")
	}

	ev.Emit("before")

	var got []string
	ev.On(root, func(s string) { got = append(got, s) })
	if len(got) != 0 {
		t.Fatalf("handler saw %v, want no events emitted before On", got)
	}

	ev.Emit("a")
	ev.Emit("a")
	ev.Emit("b")
	if want := []string{"a", "a", "b"}; !slices.Equal(got, want) {
		t.Errorf("received %v, want %v", got, want)
	}

	if v, ok := ev.Latest(); !ok || v != "b" {
		t.Errorf("Latest() = %q, %v", v, ok)
	}
}

func TestEventSignalReentrantEmit(t *testing.T) {
	_, root := newTestRuntime(t)

	ev := NewEventSignal[string](root)
	var got []string
	ev.On(root, func(s string) {
		got = append(got, s)
		switch s {
		case "ping":
			ev.Emit("pong")
		case "burst":
			ev.Emit("x")
			ev.Emit("y")
		}
	})

	ev.Emit("ping")
	if want := []string{"ping", "pong"}; !slices.Equal(got, want) {
		t.Errorf("received %v, want %v", got, want)
	}

	got = nil
	ev.Emit("burst")
	if want := []string{"burst", "y"}; !slices.Equal(got, want) {
		t.Errorf("received %v, want %v (latest of the nested events)", got, want)
	}
}

func TestEventSignalHandlerIsUntracked(t *testing.T) {
	_, root := newTestRuntime(t)

	ev := NewEventSignal[int](root)
	other := CreateSignal(root, 0)
	calls := 0
	ev.On(root, func(int) {
		calls++
		_ = other.Get()
	})

	ev.Emit(1)
	other.Set(1)
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (reads in the handler must not subscribe)", calls)
	}
}

func TestEventSignalStopsWithScope(t *testing.T) {
	_, root := newTestRuntime(t)

	ev := NewEventSignal[int](root)
	scope := root.Child()
	calls := 0
	ev.On(scope, func(int) { calls++ })

	ev.Emit(1)
	scope.Dispose()
	ev.Emit(2)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err := ev.Dispose(); err != nil {
		t.Errorf("Dispose() error = %v", err)
	}
}
