// Package tracing exports reactive runtime activity as OpenTelemetry spans.
//
// Each effect run becomes a span covering the run, each emit a span covering
// its synchronous delivery, and each scope teardown a zero-length span.
// Stale accesses and budget trips are recorded as error spans.
//
// The tracer comes from the global OpenTelemetry tracer provider unless
// WithTracerProvider is given. Configure it in main() before creating the
// runtime:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//
//	rt := reactive.NewRuntime(reactive.WithObserver(tracing.New()))
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// Default tracer name for the reactive runtime.
const defaultTracerName = "reactive"

// Config configures the tracing observer.
type Config struct {
	// TracerName is the name of the tracer (default: "reactive").
	TracerName string

	// TracerProvider supplies the tracer. Default: otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// SkipEmits drops emit spans. Effect runs are still traced.
	SkipEmits bool

	// Filter determines which events to trace.
	// Return true to trace the event, false to skip.
	// If nil, all traceable events are traced.
	Filter func(ev reactive.Event) bool

	// BaseContext is the parent context for every span. Default: context.Background().
	BaseContext context.Context
}

// Option configures the tracing observer.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		c.TracerProvider = tp
	}
}

// WithSkipEmits enables or disables dropping emit spans.
func WithSkipEmits(skip bool) Option {
	return func(c *Config) {
		c.SkipEmits = skip
	}
}

// WithEventFilter sets a filter function for events.
func WithEventFilter(filter func(ev reactive.Event) bool) Option {
	return func(c *Config) {
		c.Filter = filter
	}
}

// WithBaseContext sets the parent context for spans.
func WithBaseContext(ctx context.Context) Option {
	return func(c *Config) {
		c.BaseContext = ctx
	}
}

func defaultConfig() Config {
	return Config{
		TracerName:  defaultTracerName,
		BaseContext: context.Background(),
	}
}

// Observer turns runtime events into spans. It implements reactive.Observer.
type Observer struct {
	config Config
	tracer trace.Tracer
}

// New creates a tracing observer.
func New(opts ...Option) *Observer {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.TracerProvider == nil {
		config.TracerProvider = otel.GetTracerProvider()
	}
	if config.BaseContext == nil {
		config.BaseContext = context.Background()
	}
	return &Observer{
		config: config,
		tracer: config.TracerProvider.Tracer(config.TracerName),
	}
}

// Observe implements reactive.Observer.
func (o *Observer) Observe(ev reactive.Event) {
	if o.config.Filter != nil && !o.config.Filter(ev) {
		return
	}

	switch ev.Type {
	case reactive.EventEffectRun:
		name := "reactive.effect"
		if ev.Name != "" {
			name += " " + ev.Name
		}
		o.span(name, ev,
			attribute.Bool("reactive.rerun", ev.Rerun),
			attribute.Int64("reactive.scope", int64(ev.Scope)))

	case reactive.EventEmit:
		if o.config.SkipEmits {
			return
		}
		o.span("reactive.emit", ev, attribute.Int("reactive.delivered", ev.Delivered))

	case reactive.EventScopeDisposed, reactive.EventScopeDeferred:
		o.span("reactive."+ev.Type.String(), ev, attribute.Int64("reactive.scope", int64(ev.Scope)))

	case reactive.EventStaleAccess, reactive.EventBudgetExceeded:
		o.span("reactive."+ev.Type.String(), ev, attribute.String("reactive.op", ev.Op))
	}
}

// span records a finished span for ev, backdated to the event's time.
func (o *Observer) span(name string, ev reactive.Event, extra ...attribute.KeyValue) {
	start := ev.Time
	if start.IsZero() {
		start = time.Now()
	}

	attrs := make([]attribute.KeyValue, 0, len(extra)+3)
	if ev.Resource != "" {
		attrs = append(attrs, attribute.String("reactive.resource", ev.Resource))
	}
	if ev.Kind != 0 {
		attrs = append(attrs, attribute.String("reactive.kind", ev.Kind.String()))
	}
	if ev.Name != "" {
		attrs = append(attrs, attribute.String("reactive.effect", ev.Name))
	}
	attrs = append(attrs, extra...)

	_, span := o.tracer.Start(
		o.config.BaseContext,
		name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(start),
	)

	if ev.Error != "" {
		span.SetStatus(codes.Error, ev.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(start.Add(ev.Duration)))
}
