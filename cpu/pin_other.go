//go:build !linux

package cpu

// Pin is a no-op where thread affinity is unavailable.
func Pin(core int) error { return nil }
