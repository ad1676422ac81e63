// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go - Cold-path logging facade over zap
//
// Purpose:
//   - Keeps the DropMessage / DropError call shape used across the tree.
//   - Routes every entry through one process logger configured at startup.
//
// Notes:
//   - The logger defaults to a no-op until Init runs, so packages and tests
//     can log without setup.
//   - Services take a *zap.Logger explicitly; this facade serves main and
//     one-off diagnostics.
//
// ⚠️ Never invoke in hot loops - use only in setup, job changes and failures.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// Init builds the process logger at the named level ("debug", "info", ...).
// Development mode switches to the console encoder.
func Init(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("debug: log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("debug: build logger: %w", err)
	}
	Set(l)
	return l, nil
}

// Set replaces the process logger.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// Logger returns the process logger.
func Logger() *zap.Logger { return current.Load() }

// Sync flushes buffered entries.
func Sync() { _ = current.Load().Sync() }

// DropError logs err under prefix, or just the prefix as a trace tag when err is nil.
func DropError(prefix string, err error) {
	l := current.Load()
	if err != nil {
		l.Error(prefix, zap.Error(err))
		return
	}
	l.Warn(prefix)
}

// DropMessage logs an informational cold-path event.
func DropMessage(prefix, message string) {
	current.Load().Info(message, zap.String("prefix", prefix))
}
