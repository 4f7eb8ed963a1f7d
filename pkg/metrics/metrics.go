// Package metrics exports reactive runtime activity as Prometheus metrics.
//
// Create an Observer and pass it to the runtime:
//
//	obs := metrics.New(metrics.WithNamespace("editor"))
//	rt := reactive.NewRuntime(reactive.WithObserver(obs))
//	_ = obs.RegisterStats(rt)
//
//	http.Handle("/metrics", promhttp.Handler())
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// Config configures the Prometheus observer.
type Config struct {
	// Namespace is the metrics namespace (default: "reactive").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for effect run duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the Prometheus observer.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the effect duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "reactive",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Observer records runtime events as Prometheus metrics.
// It implements reactive.Observer.
type Observer struct {
	config Config

	resourcesCreated  *prometheus.CounterVec
	resourcesDisposed *prometheus.CounterVec
	effectRuns        *prometheus.CounterVec
	effectDuration    prometheus.Histogram
	emits             prometheus.Counter
	emitFanout        prometheus.Histogram
	scopesDisposed    prometheus.Counter
	scopesDeferred    prometheus.Counter
	staleAccess       *prometheus.CounterVec
	budgetExceeded    *prometheus.CounterVec
}

// New creates an Observer and registers its metrics.
//
// Metrics collected:
//   - reactive_resources_created_total: Counter of arena allocations by kind
//   - reactive_resources_disposed_total: Counter of freed arena slots by kind
//   - reactive_effect_runs_total: Counter of effect runs, split by rerun
//   - reactive_effect_duration_seconds: Histogram of effect run duration
//   - reactive_emits_total: Counter of emits
//   - reactive_emit_fanout: Histogram of live subscribers reached per emit
//   - reactive_scopes_disposed_total: Counter of scope teardowns
//   - reactive_scopes_deferred_total: Counter of disposals deferred by a running effect
//   - reactive_stale_access_total: Counter of reads and writes through dead handles by op
//   - reactive_budget_exceeded_total: Counter of budget trips by op
//
// New panics if the metrics are already registered with the registry, like
// promauto does.
func New(opts ...Option) *Observer {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}

	return &Observer{
		config: config,

		resourcesCreated: factory.NewCounterVec(
			counter("resources_created_total", "Total number of arena resources created"),
			[]string{"kind"}),

		resourcesDisposed: factory.NewCounterVec(
			counter("resources_disposed_total", "Total number of arena resources freed"),
			[]string{"kind"}),

		effectRuns: factory.NewCounterVec(
			counter("effect_runs_total", "Total number of effect runs"),
			[]string{"rerun"}),

		effectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_duration_seconds",
			Help:        "Effect run duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		emits: factory.NewCounter(counter("emits_total", "Total number of emitter notifications")),

		emitFanout: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "emit_fanout",
			Help:        "Live subscribers reached per emit",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),

		scopesDisposed: factory.NewCounter(counter("scopes_disposed_total", "Total number of scopes torn down")),

		scopesDeferred: factory.NewCounter(counter("scopes_deferred_total", "Total number of scope disposals deferred by a running effect")),

		staleAccess: factory.NewCounterVec(
			counter("stale_access_total", "Total number of accesses through disposed handles"),
			[]string{"op"}),

		budgetExceeded: factory.NewCounterVec(
			counter("budget_exceeded_total", "Total number of rerun or emit depth budget trips"),
			[]string{"op"}),
	}
}

// Observe implements reactive.Observer.
func (o *Observer) Observe(ev reactive.Event) {
	switch ev.Type {
	case reactive.EventResourceCreated:
		o.resourcesCreated.WithLabelValues(ev.Kind.String()).Inc()
	case reactive.EventResourceDisposed:
		o.resourcesDisposed.WithLabelValues(ev.Kind.String()).Inc()
	case reactive.EventEffectRun:
		o.effectRuns.WithLabelValues(strconv.FormatBool(ev.Rerun)).Inc()
		o.effectDuration.Observe(ev.Duration.Seconds())
	case reactive.EventEmit:
		o.emits.Inc()
		o.emitFanout.Observe(float64(ev.Delivered))
	case reactive.EventScopeDisposed:
		o.scopesDisposed.Inc()
	case reactive.EventScopeDeferred:
		o.scopesDeferred.Inc()
	case reactive.EventStaleAccess:
		o.staleAccess.WithLabelValues(ev.Op).Inc()
	case reactive.EventBudgetExceeded:
		o.budgetExceeded.WithLabelValues(ev.Op).Inc()
	}
}

// RegisterStats registers gauges that report rt's arena occupancy at
// scrape time.
func (o *Observer) RegisterStats(rt *reactive.Runtime) error {
	return o.config.Registry.Register(newStatsCollector(rt, o.config))
}
