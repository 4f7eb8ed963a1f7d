// Package reactive provides the fine-grained reactive engine: signals,
// effects that discover the signals they read, and scopes that own both.
//
// Everything the engine allocates lives in a Runtime arena and is named by
// a generation-counted ResourceID. Handles never hold Go pointers into the
// arena, so a handle that outlives its resource resolves to ErrStaleAccess
// instead of reading freed state.
//
// # Core Types
//
// Signal[T] is a reactive value cell:
//
//	rt := reactive.NewRuntime()
//	root := rt.NewScope()
//	count := reactive.CreateSignal(root, 0)
//	value := count.Get()  // Read (tracked by the running effect)
//	count.Set(5)          // Write (always notifies, even for equal values)
//
// Effect re-runs whenever a signal it read during its last run is set:
//
//	reactive.CreateEffect(root, func() {
//	    fmt.Println("count is", count.Get())
//	})
//
// Scope owns signals, effects and child scopes. Disposing a scope tears
// down its children first, then its own resources:
//
//	branch := root.Child()
//	defer branch.Dispose()
//
// # Notification
//
// CallbackEmitter[E] is the notification primitive. Emit takes the whole
// subscriber table and replaces it with an empty one before delivering, so a
// subscriber is notified at most once per Emit even when its callback emits
// again. Effects re-subscribe after every run; plain callbacks that want
// every event use Listen.
//
// # Thread Safety
//
// A single mutex per Runtime guards the arena. It is never held while user
// code runs. The effect stack used for dependency tracking is kept per
// goroutine, and effects run synchronously on the goroutine that calls Emit.
package reactive
