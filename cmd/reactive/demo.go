package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// windowTicks is how often the demo replaces its short-lived child scope.
const windowTicks = 10

// runDemo drives a small signal graph on a ticker until ctx is done.
// Every resource it creates lives in one root scope disposed on return.
func runDemo(ctx context.Context, rt *reactive.Runtime, logger *slog.Logger, interval time.Duration) error {
	root := rt.NewScope()
	defer root.Dispose()

	ticks := reactive.CreateSignal(root, 0)
	parity := reactive.CreateMemo(root, func() string {
		if ticks.Get()%2 == 0 {
			return "even"
		}
		return "odd"
	}, reactive.EffectName("parity"))

	reactive.CreateEffect(root, func() {
		logger.Debug("demo: tick",
			slog.Int("tick", ticks.Get()),
			slog.String("parity", parity.Get()))
	}, reactive.EffectName("log-tick"))

	windows := reactive.NewEventSignal[int](root)
	windows.On(root, func(n int) {
		logger.Debug("demo: window rotated", slog.Int("tick", n))
	})

	var window *reactive.Scope
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		ticks.Set(n)

		if n%windowTicks == 0 {
			if window != nil {
				window.Dispose()
			}
			window = root.Child()
			reactive.CreateEffect(window, func() {
				_ = parity.Get()
			}, reactive.EffectName("window"))
			windows.Emit(n)
		}
	}
}
