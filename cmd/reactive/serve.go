package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vango-dev/reactive/internal/config"
	"github.com/vango-dev/reactive/internal/errors"
	"github.com/vango-dev/reactive/pkg/devtools"
	"github.com/vango-dev/reactive/pkg/metrics"
	"github.com/vango-dev/reactive/pkg/reactive"
	"github.com/vango-dev/reactive/pkg/tracing"
)

// devtoolsPrefix is where the inspector routes are mounted.
const devtoolsPrefix = "/debug/reactive"

type serveOptions struct {
	configPath string
	host       string
	port       int
	demo       bool
	interval   time.Duration
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a runtime behind the inspection server",
		Long: `Start a reactive runtime and serve its telemetry.

The server exposes Prometheus metrics, the devtools inspector
(websocket event stream, recent events and arena stats) and a
health check. With --demo a small signal graph is driven on a
ticker so there is something to look at.

Examples:
  reactive serve
  reactive serve --demo --interval=250ms
  reactive serve --config=./deploy/reactive.json --port=9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to reactive.json (default: nearest in working directory)")
	cmd.Flags().StringVarP(&opts.host, "host", "H", "", "Host to bind to (default from reactive.json)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (default from reactive.json)")
	cmd.Flags().BoolVar(&opts.demo, "demo", false, "Drive a demo signal graph")
	cmd.Flags().DurationVar(&opts.interval, "interval", time.Second, "Demo tick interval")

	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	if opts.interval <= 0 {
		return errors.New("X001").
			WithDetail("--interval must be positive")
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.NewLogger(cmd.ErrOrStderr())
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	printBanner(out)
	info(out, "serve %s", cfg.URL())
	if cfg.Metrics.Enabled {
		info(out, "metrics  %s%s", cfg.URL(), cfg.Metrics.Path)
	}
	if cfg.Devtools.Enabled {
		info(out, "devtools %s%s", cfg.URL(), devtoolsPrefix)
	}

	return a.run(ctx, opts)
}

// loadConfig reads path, or the nearest reactive.json when path is empty.
// Without a file the defaults are used.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.LoadFromWorkingDir()
	if errors.CodeOf(err) == "C003" {
		return config.New(), nil
	}
	return cfg, err
}

// app is a runtime wired to its observers.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	rt        *reactive.Runtime
	registry  *prometheus.Registry
	inspector *devtools.Inspector
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var observers []reactive.Observer
	var recorder *metrics.Observer
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		recorder = metrics.New(
			metrics.WithNamespace(cfg.Metrics.Namespace),
			metrics.WithSubsystem(cfg.Metrics.Subsystem),
			metrics.WithConstLabels(prometheus.Labels{"runtime": cfg.Name}),
			metrics.WithRegistry(a.registry),
		)
		observers = append(observers, recorder)
	}
	if cfg.Tracing.Enabled {
		observers = append(observers, tracing.New(
			tracing.WithTracerName(cfg.Tracing.TracerName),
			tracing.WithSkipEmits(cfg.Tracing.SkipEmits),
		))
	}
	if cfg.Devtools.Enabled {
		opts := []devtools.Option{
			devtools.WithBufferSize(cfg.Devtools.BufferSize),
			devtools.WithLogger(logger),
			devtools.WithAllowedOrigins(cfg.Devtools.AllowedOrigins...),
		}
		if eps := cfg.Devtools.EventsPerSecond; eps > 0 {
			opts = append(opts, devtools.WithClientRate(rate.Limit(eps), max(int(eps), 1)))
		}
		a.inspector = devtools.New(opts...)
		observers = append(observers, a.inspector)
	}

	a.rt = reactive.NewRuntime(
		reactive.WithLogger(logger.With(slog.String("runtime", cfg.Name))),
		reactive.WithBudget(reactive.Budget{
			MaxReruns:    cfg.Budget.MaxReruns,
			MaxEmitDepth: cfg.Budget.MaxEmitDepth,
		}),
		reactive.WithDebug(reactive.DebugConfig{
			LogEffectRuns: cfg.Debug.LogEffectRuns,
			LogDisposals:  cfg.Debug.LogDisposals,
			LogBudget:     cfg.Debug.LogBudget,
		}),
		reactive.WithObserver(observers...),
	)

	if recorder != nil {
		if err := recorder.RegisterStats(a.rt); err != nil {
			return nil, err
		}
	}
	if a.inspector != nil {
		a.inspector.Attach(a.rt)
	}
	return a, nil
}

// routes returns the HTTP handler for the enabled surfaces.
func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})

	if a.registry != nil {
		r.Method(http.MethodGet, a.cfg.Metrics.Path, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{
			Registry: a.registry,
		}))
	}
	if a.inspector != nil {
		r.Mount(devtoolsPrefix, a.inspector.Handler())
	}
	return r
}

// run serves until ctx is done, then shuts down within the configured
// timeout.
func (a *app) run(ctx context.Context, opts serveOptions) error {
	srv := &http.Server{
		Addr:              a.cfg.Address(),
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if opts.demo {
		g.Go(func() error {
			return runDemo(ctx, a.rt, a.logger, opts.interval)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
		defer cancel()
		if a.inspector != nil {
			a.inspector.Close()
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *app) close() {
	if a.inspector != nil {
		a.inspector.Close()
	}
}
