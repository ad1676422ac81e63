// pin_linux.go - Linux CPU affinity via sched_setaffinity(2)

//go:build linux

package cpu

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Pin binds the calling OS thread to core. The caller must hold
// runtime.LockOSThread for the binding to stick to its goroutine.
// A negative core leaves the affinity untouched.
func Pin(core int) error {
	if core < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("cpu: pin to core %d: %w", core, err)
	}
	return nil
}
