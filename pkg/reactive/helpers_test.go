package reactive

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// newTestRuntime returns a runtime with a discarded log and a root scope
// that is disposed when the test ends.
func newTestRuntime(t *testing.T, opts ...Option) (*Runtime, *Scope) {
	t.Helper()
	base := []Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	rt := NewRuntime(append(base, opts...)...)
	root := rt.NewScope()
	t.Cleanup(root.Dispose)
	return rt, root
}

// logBuffer is a concurrency-safe log sink.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// eventRecorder collects observer events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *eventRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func contextCount(rt *Runtime) int {
	n := 0
	rt.contexts.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
