package reactive

import "log/slog"

// DebugConfig controls debug logging. All switches default to off.
type DebugConfig struct {
	// LogEffectRuns logs each effect run with its duration.
	LogEffectRuns bool

	// LogDisposals logs scope teardown, including deferred disposals.
	LogDisposals bool

	// LogBudget logs when a budget check trips.
	// Budget trips are always logged at Warn; this adds Debug detail.
	LogBudget bool
}

// Budget bounds runaway notification cycles.
type Budget struct {
	// MaxReruns is the number of consecutive self-triggered reruns an
	// effect may perform before the cycle is cut.
	MaxReruns int

	// MaxEmitDepth is the maximum nesting of synchronous Emit calls on one
	// goroutine. Deliveries beyond it are dropped. A subscriber is detached
	// while it runs, so nesting only grows with the length of a derivation
	// chain; the limit must exceed the deepest chain the program builds.
	MaxEmitDepth int
}

// DefaultBudget returns the budget used when none is configured.
func DefaultBudget() Budget {
	return Budget{
		MaxReruns:    100,
		MaxEmitDepth: 10000,
	}
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = logger
	}
}

// WithObserver adds observers that receive runtime events.
// It may be given more than once.
func WithObserver(observers ...Observer) Option {
	return func(rt *Runtime) {
		rt.observers = append(rt.observers, observers...)
	}
}

// WithBudget sets the rerun and nesting limits. Non-positive fields fall
// back to the defaults.
func WithBudget(b Budget) Option {
	return func(rt *Runtime) {
		def := DefaultBudget()
		if b.MaxReruns <= 0 {
			b.MaxReruns = def.MaxReruns
		}
		if b.MaxEmitDepth <= 0 {
			b.MaxEmitDepth = def.MaxEmitDepth
		}
		rt.budget = b
	}
}

// WithDebug sets the debug logging switches.
func WithDebug(d DebugConfig) Option {
	return func(rt *Runtime) {
		rt.debug = d
	}
}
