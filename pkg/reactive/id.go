package reactive

import (
	"fmt"
	"sync/atomic"
)

// ResourceID names an arena slot. The generation makes ids of freed slots
// permanently stale, even after the slot index is reused.
// The zero ResourceID never resolves.
type ResourceID struct {
	index uint32
	gen   uint32
}

// IsZero reports whether id is the zero ResourceID.
func (id ResourceID) IsZero() bool {
	return id.gen == 0
}

// String returns a compact form like "r12.3" (index 12, generation 3).
func (id ResourceID) String() string {
	return fmt.Sprintf("r%d.%d", id.index, id.gen)
}

// globalIDCounter is the source of scope ids and subscription sequence numbers.
var globalIDCounter uint64

// nextID returns the next unique id. Ids are monotonically increasing and
// never reused.
func nextID() uint64 {
	return atomic.AddUint64(&globalIDCounter, 1)
}
