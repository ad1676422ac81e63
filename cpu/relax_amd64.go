// ════════════════════════════════════════════════════════════════════════════════════════════════
// CPU Relaxation - AMD64 Architecture
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: SSPlus Hasher Bridge
// Component: x86-64 Spin-Wait Hint
//
// Description:
//   Emits PAUSE inside busy-wait loops so a sibling hyperthread keeps making progress
//   while a consumer spins on an empty pair queue.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

//go:build amd64 && cgo && !noasm

package cpu

/*
static inline void cpu_pause() {
    __asm__ __volatile__("pause" ::: "memory");
}
*/
import "C"

// Relax hints the processor that the caller is spinning.
//
//go:norace
func Relax() {
	C.cpu_pause()
}
