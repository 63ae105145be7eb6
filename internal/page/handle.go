package page

import (
	"fmt"

	"github.com/hupe1980/affinity/internal/pool"
)

// Handle locates a record: the pool it lives in, its slot and the slot
// generation it was issued with. The zero Handle is invalid.
type Handle struct {
	Chunk uint16
	Slot  uint16
	Gen   uint32
}

// Invalid marks a cell with no record (retired column).
var Invalid = Handle{}

// Valid reports whether h was issued by a pool.
func (h Handle) Valid() bool { return h.Gen != 0 }

// Pack encodes h as generation<<32 | chunk<<16 | slot.
func (h Handle) Pack() uint64 {
	return uint64(h.Gen)<<32 | uint64(h.Chunk)<<16 | uint64(h.Slot)
}

// UnpackHandle decodes a value produced by Pack.
func UnpackHandle(v uint64) Handle {
	return Handle{
		Gen:   uint32(v >> 32),
		Chunk: uint16(v >> 16),
		Slot:  uint16(v),
	}
}

// String implements fmt.Stringer.
func (h Handle) String() string {
	if !h.Valid() {
		return "handle(invalid)"
	}
	return fmt.Sprintf("handle(%d:%d@%d)", h.Chunk, h.Slot, h.Gen)
}

func (h Handle) ref() pool.Ref {
	return pool.Ref{Slot: h.Slot, Gen: h.Gen}
}
