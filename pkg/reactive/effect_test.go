package reactive

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
)

func TestEffectRunsImmediately(t *testing.T) {
	_, root := newTestRuntime(t)

	ran := false
	e := CreateEffect(root, func() { ran = true })
	if !ran {
		t.Fatal("effect should run before CreateEffect returns")
	}
	if got := e.Runs(); got != 1 {
		t.Errorf("Runs() = %d, want 1", got)
	}
}

func TestEffectTracksOnlyLatestRun(t *testing.T) {
	_, root := newTestRuntime(t)

	useA := CreateSignal(root, true)
	a := CreateSignal(root, "a")
	b := CreateSignal(root, "b")

	runs := 0
	e := CreateEffect(root, func() {
		runs++
		if useA.Get() {
			_ = a.Get()
		} else {
			_ = b.Get()
		}
	})

	deps := e.Dependencies()
	if !slices.Contains(deps, a.Emitter().ID()) || slices.Contains(deps, b.Emitter().ID()) {
		t.Fatalf("initial deps = %v, want useA and a only", deps)
	}

	useA.Set(false)
	if runs != 2 {
		t.Fatalf("runs = %d after branch switch, want 2", runs)
	}

	a.Set("a2")
	if runs != 2 {
		t.Errorf("runs = %d after writing the abandoned branch, want 2", runs)
	}

	b.Set("b2")
	if runs != 3 {
		t.Errorf("runs = %d after writing the live branch, want 3", runs)
	}

	if got := len(e.Dependencies()); got != 2 {
		t.Errorf("len(Dependencies()) = %d, want 2", got)
	}
}

func TestEffectDeduplicatesReads(t *testing.T) {
	_, root := newTestRuntime(t)

	s := CreateSignal(root, 1)
	runs := 0
	e := CreateEffect(root, func() {
		runs++
		_ = s.Get() + s.Get() + s.Get()
	})

	if got := len(e.Dependencies()); got != 1 {
		t.Errorf("len(Dependencies()) = %d, want 1", got)
	}
	s.Set(2)
	if runs != 2 {
		t.Errorf("runs = %d, want 2 (one run per Set)", runs)
	}
}

func TestEffectSelfWriteReruns(t *testing.T) {
	_, root := newTestRuntime(t)

	s := CreateSignal(root, 0)
	depth, maxDepth := 0, 0
	var seen []int

	e := CreateEffect(root, func() {
		depth++
		maxDepth = max(maxDepth, depth)
		defer func() { depth-- }()

		v := s.Get()
		seen = append(seen, v)
		if v < 3 {
			s.Set(v + 1)
		}
	})

	if got := s.GetUntracked(); got != 3 {
		t.Errorf("final value = %d, want 3", got)
	}
	if got := e.Runs(); got != 4 {
		t.Errorf("Runs() = %d, want 4", got)
	}
	if !slices.Equal(seen, []int{0, 1, 2, 3}) {
		t.Errorf("seen = %v, want [0 1 2 3]", seen)
	}
	if maxDepth != 1 {
		t.Errorf("max nesting = %d, want 1 (reruns must not recurse)", maxDepth)
	}

	// Still subscribed after settling.
	s.Set(10)
	if got := e.Runs(); got != 5 {
		t.Errorf("Runs() = %d after external Set, want 5", got)
	}
}

func TestEffectRerunBudget(t *testing.T) {
	rec := &eventRecorder{}
	_, root := newTestRuntime(t, WithBudget(Budget{MaxReruns: 5}), WithObserver(rec))

	s := CreateSignal(root, 0)
	e := CreateEffect(root, func() {
		s.Set(s.Get() + 1)
	})

	if got := e.Runs(); got != 5 {
		t.Errorf("Runs() = %d, want 5", got)
	}
	if got := s.GetUntracked(); got != 5 {
		t.Errorf("value = %d, want 5", got)
	}
	if got := rec.count(EventBudgetExceeded); got != 1 {
		t.Errorf("budget events = %d, want 1", got)
	}
}

func TestEmitDepthBudget(t *testing.T) {
	rec := &eventRecorder{}
	_, root := newTestRuntime(t, WithBudget(Budget{MaxEmitDepth: 3}), WithObserver(rec))

	sigs := make([]Signal[int], 5)
	for i := range sigs {
		sigs[i] = CreateSignal(root, 0)
	}
	effects := make([]Effect, 4)
	for i := range effects {
		from, to := sigs[i], sigs[i+1]
		effects[i] = CreateEffect(root, func() {
			to.Set(from.Get())
		})
	}

	sigs[0].Set(1)

	wantRuns := []uint64{2, 2, 2, 1}
	for i, e := range effects {
		if got := e.Runs(); got != wantRuns[i] {
			t.Errorf("effect %d Runs() = %d, want %d", i, got, wantRuns[i])
		}
	}
	if got := rec.count(EventBudgetExceeded); got != 1 {
		t.Errorf("budget events = %d, want 1", got)
	}
}

func TestNestedEffectsAreIsolated(t *testing.T) {
	rt, root := newTestRuntime(t)

	outerSig := CreateSignal(root, 0)
	innerSig := CreateSignal(root, 0)

	outerRuns, innerRuns := 0, 0
	var innerScope *Scope
	outer := CreateEffect(root, func() {
		outerRuns++
		_ = outerSig.Get()

		if innerScope != nil {
			innerScope.Dispose()
		}
		innerScope = root.Child()
		CreateEffect(innerScope, func() {
			innerRuns++
			_ = innerSig.Get()
		})
	})

	if outerRuns != 1 || innerRuns != 1 {
		t.Fatalf("after creation outer=%d inner=%d, want 1/1", outerRuns, innerRuns)
	}
	if deps := outer.Dependencies(); len(deps) != 1 || deps[0] != outerSig.Emitter().ID() {
		t.Errorf("outer deps = %v, want only outerSig", deps)
	}

	innerSig.Set(1)
	if outerRuns != 1 || innerRuns != 2 {
		t.Errorf("after inner Set outer=%d inner=%d, want 1/2", outerRuns, innerRuns)
	}

	outerSig.Set(1)
	if outerRuns != 2 || innerRuns != 3 {
		t.Errorf("after outer Set outer=%d inner=%d, want 2/3", outerRuns, innerRuns)
	}

	// The first inner effect went with its scope; only the new one runs.
	innerSig.Set(2)
	if innerRuns != 4 {
		t.Errorf("inner runs = %d, want 4", innerRuns)
	}

	if got := rt.Stats().Effects; got != 2 {
		t.Errorf("live effects = %d, want 2", got)
	}
}

func TestEffectDispose(t *testing.T) {
	_, root := newTestRuntime(t)

	s := CreateSignal(root, 0)
	runs := 0
	e := CreateEffect(root, func() {
		runs++
		_ = s.Get()
	})

	if err := e.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}
	if !e.Disposed() {
		t.Error("Disposed() = false after Dispose")
	}
	if s.Emitter().Len() != 0 {
		t.Errorf("emitter still lists %d subscribers", s.Emitter().Len())
	}

	s.Set(1)
	if runs != 1 {
		t.Errorf("runs = %d after Dispose, want 1", runs)
	}
	if err := e.Dispose(); !errors.Is(err, ErrDoubleDispose) {
		t.Errorf("second Dispose() error = %v, want ErrDoubleDispose", err)
	}
}

func TestEffectInDisposedScope(t *testing.T) {
	_, root := newTestRuntime(t)

	scope := root.Child()
	scope.Dispose()

	ran := false
	e := CreateEffect(scope, func() { ran = true })
	if ran {
		t.Error("effect in disposed scope must not run")
	}
	if !e.Disposed() {
		t.Error("effect in disposed scope should be disposed")
	}
}

func TestEffectPanicLeavesRuntimeConsistent(t *testing.T) {
	var logs logBuffer
	rt, root := newTestRuntime(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	scope := root.Child()
	s := CreateSignal(scope, 0)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic from effect")
			}
		}()
		CreateEffect(scope, func() {
			if s.Get() == 0 {
				panic("boom")
			}
		}, EffectName("fragile"))
	}()

	if out := logs.String(); !strings.Contains(out, "effect panicked") || !strings.Contains(out, "effect=fragile") {
		t.Errorf("panicked run should be logged with the effect name, got:\n%s", out)
	}

	st := rt.Stats()
	if st.Inflight != 0 {
		t.Errorf("Inflight = %d after panic, want 0", st.Inflight)
	}
	if n := contextCount(rt); n != 0 {
		t.Errorf("%d tracking contexts left after panic, want 0", n)
	}

	// The drop lock was released, so disposal is immediate.
	scope.Dispose()
	if !scope.Disposed() {
		t.Error("scope should dispose immediately after a panicked run")
	}
}

func TestEffectName(t *testing.T) {
	rec := &eventRecorder{}
	_, root := newTestRuntime(t, WithObserver(rec))

	CreateEffect(root, func() {}, EffectName("title"))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	found := false
	for _, ev := range rec.events {
		if ev.Type == EventEffectRun && ev.Name == "title" {
			found = true
		}
	}
	if !found {
		t.Error("no effect_run event carried the effect name")
	}
}

func TestStatsInsideEffect(t *testing.T) {
	rt, root := newTestRuntime(t)

	var inflight int
	CreateEffect(root, func() {
		inflight = rt.Stats().Inflight
	})
	if inflight != 1 {
		t.Errorf("Inflight during run = %d, want 1", inflight)
	}
}

func TestNestedWriteRerunsOuterReader(t *testing.T) {
	_, root := newTestRuntime(t)

	s := CreateSignal(root, 0)
	var seen []int
	var inner *Scope
	CreateEffect(root, func() {
		seen = append(seen, s.Get())
		if inner == nil {
			inner = root.Child()
			CreateEffect(inner, func() {
				if s.GetUntracked() == 0 {
					s.Set(1)
				}
			})
		}
	})

	if !slices.Equal(seen, []int{0, 1}) {
		t.Errorf("outer saw %v, want [0 1]", seen)
	}
}
