// ════════════════════════════════════════════════════════════════════════════════════════════════
// CPU Relaxation - ARM64 Architecture
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: SSPlus Hasher Bridge
// Component: AArch64 Spin-Wait Hint
//
// Description:
//   Emits YIELD inside busy-wait loops. This is the variant that runs on the
//   controller boards carrying the hasher.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

//go:build arm64 && cgo && !noasm

package cpu

/*
static inline void cpu_yield() {
    __asm__ __volatile__("yield" ::: "memory");
}
*/
import "C"

// Relax hints the processor that the caller is spinning.
//
//go:norace
func Relax() {
	C.cpu_yield()
}
