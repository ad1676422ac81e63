//go:build !unix

package mmio

import "errors"

// Map is unavailable without mmap(2).
func Map(device string, base uint64, size int) (*Region, error) {
	return nil, errors.New("mmio: physical mapping not supported on this platform")
}
