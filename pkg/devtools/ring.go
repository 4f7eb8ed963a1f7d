package devtools

import (
	"sync"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// ring is a fixed-size buffer of the most recent events.
type ring struct {
	mu    sync.Mutex
	buf   []reactive.Event
	next  int
	full  bool
	total uint64
}

func newRing(size int) *ring {
	if size < 1 {
		size = 1
	}
	return &ring{buf: make([]reactive.Event, size)}
}

func (r *ring) add(ev reactive.Event) {
	r.mu.Lock()
	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	r.total++
	r.mu.Unlock()
}

// snapshot returns the buffered events, oldest first.
func (r *ring) snapshot() []reactive.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		return append([]reactive.Event(nil), r.buf[:r.next]...)
	}
	out := make([]reactive.Event, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// counts returns the number of buffered events and the number ever added.
func (r *ring) counts() (int, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf), r.total
	}
	return r.next, r.total
}
