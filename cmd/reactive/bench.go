package main

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/reactive/internal/errors"
	"github.com/vango-dev/reactive/pkg/reactive"
)

type benchOptions struct {
	iterations int
	workers    int
	fanout     int
}

// benchResult is the outcome of one workload.
type benchResult struct {
	Name     string
	Ops      int
	Duration time.Duration
	Runs     uint64
}

// PerOp returns the mean time per operation.
func (r benchResult) PerOp() time.Duration {
	if r.Ops == 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Ops)
}

func benchCmd() *cobra.Command {
	var opts benchOptions

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure runtime throughput",
		Long: `Run in-process workloads against a fresh runtime and print timings.

Workloads:
  set       one signal, one effect, repeated writes
  fanout    one signal read by many effects
  churn     child scopes created and disposed with a signal and an effect
  parallel  independent signal/effect pairs written from several goroutines

Examples:
  reactive bench
  reactive bench --iterations=1000000 --workers=8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.iterations < 1 || opts.workers < 1 || opts.fanout < 1 {
				return errors.New("X001").
					WithDetail("--iterations, --workers and --fanout must be at least 1")
			}
			results, err := runBench(opts)
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.iterations, "iterations", "n", 100000, "Operations per workload")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 4, "Goroutines for the parallel workload")
	cmd.Flags().IntVar(&opts.fanout, "fanout", 100, "Effects per signal for the fanout workload")

	return cmd
}

func newBenchRuntime() *reactive.Runtime {
	return reactive.NewRuntime(reactive.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func runBench(opts benchOptions) ([]benchResult, error) {
	results := []benchResult{
		benchSet(opts.iterations),
		benchFanout(opts.iterations, opts.fanout),
		benchChurn(opts.iterations),
	}
	par, err := benchParallel(opts.iterations, opts.workers)
	if err != nil {
		return nil, err
	}
	return append(results, par), nil
}

func benchSet(n int) benchResult {
	rt := newBenchRuntime()
	scope := rt.NewScope()
	defer scope.Dispose()

	s := reactive.CreateSignal(scope, 0)
	eff := reactive.CreateEffect(scope, func() { _ = s.Get() })

	start := time.Now()
	for i := 0; i < n; i++ {
		s.Set(i)
	}
	return benchResult{Name: "set", Ops: n, Duration: time.Since(start), Runs: eff.Runs()}
}

func benchFanout(n, fanout int) benchResult {
	rt := newBenchRuntime()
	scope := rt.NewScope()
	defer scope.Dispose()

	s := reactive.CreateSignal(scope, 0)
	effects := make([]reactive.Effect, fanout)
	for i := range effects {
		effects[i] = reactive.CreateEffect(scope, func() { _ = s.Get() })
	}

	writes := max(n/fanout, 1)
	start := time.Now()
	for i := 0; i < writes; i++ {
		s.Set(i)
	}
	elapsed := time.Since(start)

	var runs uint64
	for _, eff := range effects {
		runs += eff.Runs()
	}
	return benchResult{Name: "fanout", Ops: writes, Duration: elapsed, Runs: runs}
}

func benchChurn(n int) benchResult {
	rt := newBenchRuntime()
	root := rt.NewScope()
	defer root.Dispose()

	var runs uint64
	start := time.Now()
	for i := 0; i < n; i++ {
		child := root.Child()
		s := reactive.CreateSignal(child, i)
		eff := reactive.CreateEffect(child, func() { _ = s.Get() })
		runs += eff.Runs()
		child.Dispose()
	}
	return benchResult{Name: "churn", Ops: n, Duration: time.Since(start), Runs: runs}
}

func benchParallel(n, workers int) (benchResult, error) {
	rt := newBenchRuntime()
	root := rt.NewScope()
	defer root.Dispose()

	per := max(n/workers, 1)
	effects := make([]reactive.Effect, workers)

	var g errgroup.Group
	start := time.Now()
	for w := 0; w < workers; w++ {
		w := w
		scope := root.Child()
		g.Go(func() error {
			s := reactive.CreateSignal(scope, 0)
			effects[w] = reactive.CreateEffect(scope, func() { _ = s.Get() })
			for i := 0; i < per; i++ {
				s.Set(i)
			}
			if got := s.GetUntracked(); got != per-1 {
				return fmt.Errorf("worker %d: signal holds %d, want %d", w, got, per-1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return benchResult{}, err
	}
	elapsed := time.Since(start)

	var runs uint64
	for _, eff := range effects {
		runs += eff.Runs()
	}
	return benchResult{Name: "parallel", Ops: per * workers, Duration: elapsed, Runs: runs}, nil
}

func printResults(w io.Writer, results []benchResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKLOAD\tOPS\tTOTAL\tPER OP\tEFFECT RUNS")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\n", r.Name, r.Ops, r.Duration.Round(time.Microsecond), r.PerOp(), r.Runs)
	}
	tw.Flush()
}
