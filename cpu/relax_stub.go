//go:build !(amd64 || arm64) || !cgo || noasm

package cpu

// Relax is a no-op where no spin-wait hint is wired.
func Relax() {}
