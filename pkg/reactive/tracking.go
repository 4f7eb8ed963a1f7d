package reactive

import (
	"runtime"
)

// trackingContext is the per-goroutine reactive state of a Runtime.
type trackingContext struct {
	gid uint64

	// stack holds the ids of the effects currently running on this
	// goroutine, innermost last. Reads attribute to the top entry only.
	stack []ResourceID

	// emitDepth counts nested Emit calls on this goroutine.
	emitDepth int

	// active counts the frames using this context. The context is dropped
	// from the runtime when it reaches zero.
	active int
}

// getGoroutineID returns a unique identifier for the current goroutine.
// This uses the runtime stack to extract the goroutine ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> "
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// enterTracking returns the calling goroutine's context, creating it if
// needed, and pins it until the matching exitTracking.
func (rt *Runtime) enterTracking() *trackingContext {
	gid := getGoroutineID()
	if v, ok := rt.contexts.Load(gid); ok {
		tc := v.(*trackingContext)
		tc.active++
		return tc
	}
	tc := &trackingContext{gid: gid, active: 1}
	rt.contexts.Store(gid, tc)
	return tc
}

func (rt *Runtime) exitTracking(tc *trackingContext) {
	tc.active--
	if tc.active == 0 {
		rt.contexts.Delete(tc.gid)
	}
}

// currentTracking returns the calling goroutine's context or nil.
func (rt *Runtime) currentTracking() *trackingContext {
	if v, ok := rt.contexts.Load(getGoroutineID()); ok {
		return v.(*trackingContext)
	}
	return nil
}

// currentEffect returns the innermost running effect on this goroutine.
func (rt *Runtime) currentEffect() (ResourceID, bool) {
	tc := rt.currentTracking()
	if tc == nil || len(tc.stack) == 0 {
		return ResourceID{}, false
	}
	return tc.stack[len(tc.stack)-1], true
}

func (tc *trackingContext) push(id ResourceID) {
	tc.stack = append(tc.stack, id)
}

// pop removes id from the top of the stack. Any other state is a broken
// push/pop pairing and panics.
func (tc *trackingContext) pop(id ResourceID) {
	n := len(tc.stack)
	if n == 0 {
		panic(Diagnose(ErrEffectStackUnderflow).With("effect", id))
	}
	if top := tc.stack[n-1]; top != id {
		panic(Diagnose(ErrEffectStackUnderflow).
			With("effect", id).
			With("top", top).
			WithDetail("The effect stack is corrupted: the effect being popped is not the innermost running effect."))
	}
	tc.stack = tc.stack[:n-1]
}

// Untrack runs fn with an empty effect stack. Reads inside fn register no
// dependencies, whatever effect is running around the call.
//
// Example:
//
//	reactive.CreateEffect(scope, func() {
//	    a := left.Get() // tracked
//	    rt.Untrack(func() {
//	        log.Println(right.Get()) // not tracked
//	    })
//	})
func (rt *Runtime) Untrack(fn func()) {
	tc := rt.enterTracking()
	saved := tc.stack
	tc.stack = nil
	defer func() {
		tc.stack = saved
		rt.exitTracking(tc)
	}()
	fn()
}

// Untracked is Untrack for functions that return a value.
func Untracked[T any](rt *Runtime, fn func() T) T {
	var out T
	rt.Untrack(func() {
		out = fn()
	})
	return out
}
