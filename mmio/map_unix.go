//go:build unix

package mmio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Map maps size bytes of device at physical offset base, read/write and shared.
// The file descriptor is closed once the mapping exists.
func Map(device string, base uint64, size int) (*Region, error) {
	if size <= 0 || size%8 != 0 {
		return nil, ErrUnaligned
	}

	fd, err := unix.Open(device, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: open %s: %w", device, err)
	}
	defer unix.Close(fd)

	mem, err := unix.Mmap(fd, int64(base), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmio: map %s at %#x (+%#x): %w", device, base, size, err)
	}

	r := wrap(mem, unix.Munmap)
	r.Base = base
	r.Device = device
	return r, nil
}
