// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: region.go - Word-addressed views over hasher memory windows
//
// Purpose:
//   - Wraps a mapped physical window (or a heap stand-in) with atomic word access.
//   - Every load/store goes through sync/atomic so the compiler never caches
//     or elides a device access.
//
// Notes:
//   - Map is the only constructor that touches /dev/mem; Heap backs tests & emulation.
//   - Word indices are not bounds-masked: out-of-range access panics.
//
// ⚠️ A Region must not be used after Close.
// ─────────────────────────────────────────────────────────────────────────────

package mmio

import (
	"errors"
	"sync/atomic"
	"unsafe"
)

// ErrUnaligned is returned for windows that are not a whole number of 64-bit words.
var ErrUnaligned = errors.New("mmio: window size must be a multiple of 8 bytes")

// Region is a word-addressable memory window.
type Region struct {
	mem    []byte
	w32    []uint32
	w64    []uint64
	unmap  func([]byte) error
	Base   uint64 // physical base, 0 for heap regions
	Device string // backing device, empty for heap regions
}

// Heap allocates an 8-byte aligned in-process window of size bytes.
func Heap(size int) (*Region, error) {
	if size <= 0 || size%8 != 0 {
		return nil, ErrUnaligned
	}
	words := make([]uint64, size/8)
	mem := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
	return wrap(mem, nil), nil
}

// wrap builds the typed views over mem.
func wrap(mem []byte, unmap func([]byte) error) *Region {
	p := unsafe.Pointer(&mem[0])
	return &Region{
		mem:   mem,
		w32:   unsafe.Slice((*uint32)(p), len(mem)/4),
		w64:   unsafe.Slice((*uint64)(p), len(mem)/8),
		unmap: unmap,
	}
}

// Size returns the window size in bytes.
func (r *Region) Size() int { return len(r.mem) }

// Words32 returns the number of 32-bit words in the window.
func (r *Region) Words32() int { return len(r.w32) }

// Words64 returns the number of 64-bit words in the window.
func (r *Region) Words64() int { return len(r.w64) }

// Load32 reads the 32-bit word at index i.
//
//go:nosplit
func (r *Region) Load32(i int) uint32 { return atomic.LoadUint32(&r.w32[i]) }

// Store32 writes the 32-bit word at index i.
//
//go:nosplit
func (r *Region) Store32(i int, v uint32) { atomic.StoreUint32(&r.w32[i], v) }

// Load64 reads the 64-bit word at index i.
//
//go:nosplit
func (r *Region) Load64(i int) uint64 { return atomic.LoadUint64(&r.w64[i]) }

// Store64 writes the 64-bit word at index i.
//
//go:nosplit
func (r *Region) Store64(i int, v uint64) { atomic.StoreUint64(&r.w64[i], v) }

// Close releases the mapping. Heap regions are left to the collector.
func (r *Region) Close() error {
	if r.unmap == nil {
		return nil
	}
	mem, unmap := r.mem, r.unmap
	r.mem, r.w32, r.w64, r.unmap = nil, nil, nil, nil
	return unmap(mem)
}
