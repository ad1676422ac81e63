// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: stream.go - Hasher result stream
//
// Purpose:
//   - Exposes the circular window the hasher fills with (trial, tail) readings.
//
// Notes:
//   - One 64-bit little-endian word per slot: low 32 bits trial, high 32 bits tail.
//   - The window length is a power of two; cursors wrap with a mask.
//   - Reads never block: a slot always holds the latest value written to it.
// ─────────────────────────────────────────────────────────────────────────────

package pram

import (
	"fmt"

	"ssplus/collide"
	"ssplus/mmio"
)

// Stream reads hasher results by slot.
type Stream struct {
	r    *mmio.Region
	mask uint32
}

// New binds a stream to a result window.
func New(r *mmio.Region) (*Stream, error) {
	n := r.Words64()
	if n == 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("pram: window of %d entries is not a power of two", n)
	}
	return &Stream{r: r, mask: uint32(n - 1)}, nil
}

// Len returns the number of slots.
func (s *Stream) Len() uint32 { return s.mask + 1 }

// Read returns the reading at cursor (wrapped to the window).
//
//go:norace
func (s *Stream) Read(cursor uint32) collide.Point {
	return Unpack(s.r.Load64(int(cursor & s.mask)))
}

// Write stores p at cursor. Used by the engine emulator.
func (s *Stream) Write(cursor uint32, p collide.Point) {
	s.r.Store64(int(cursor&s.mask), Pack(p))
}

// Pack encodes a reading as its slot word.
//
//go:nosplit
func Pack(p collide.Point) uint64 { return uint64(p.Tail)<<32 | uint64(p.Trial) }

// Unpack decodes a slot word.
//
//go:nosplit
func Unpack(v uint64) collide.Point {
	return collide.Point{Trial: uint32(v), Tail: uint32(v >> 32)}
}
