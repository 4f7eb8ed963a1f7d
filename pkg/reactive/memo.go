package reactive

// Memo is a read-only signal kept up to date by an effect.
type Memo[T any] struct {
	sig Signal[T]
}

// CreateMemo creates a memo owned by scope. fn runs once immediately and
// again whenever a signal it reads is set; each recomputation notifies the
// memo's dependents, like a Set would.
//
// Example:
//
//	doubled := reactive.CreateMemo(scope, func() int { return count.Get() * 2 })
func CreateMemo[T any](scope *Scope, fn func() T, opts ...EffectOption) Memo[T] {
	var zero T
	sig := CreateSignal(scope, zero)
	opts = append([]EffectOption{EffectName("memo")}, opts...)
	CreateEffect(scope, func() {
		sig.Set(fn())
	}, opts...)
	return Memo[T]{sig: sig}
}

// Get returns the memoized value and records a dependency.
func (m Memo[T]) Get() T {
	return m.sig.Get()
}

// GetUntracked returns the memoized value without recording a dependency.
func (m Memo[T]) GetUntracked() T {
	return m.sig.GetUntracked()
}

// ID returns the id of the memo's value resource.
func (m Memo[T]) ID() ResourceID {
	return m.sig.ID()
}
