// control.go - Run/stop flags and activity tracking for spinning workers
// ============================================================================
// SYSTEM CONTROL ORCHESTRATION
// ============================================================================
//
// Control provides the signalling shared between the sorter loop, the pair
// consumers and the process lifecycle.
//
// Architecture overview:
//   • Stop flag polled once per loop iteration by every spinning worker
//   • Hot flag raised when pairs flow, cleared after an idle cooldown
//   • Flags are per service instance, never process globals
//
// Threading model:
//   • Any goroutine may call Shutdown / SignalActivity
//   • Workers poll Stopped / Hot with plain atomic loads

package control

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultCooldown is the idle period after which Hot clears.
const DefaultCooldown = time.Second

// Flags coordinates one group of spinning workers.
type Flags struct {
	stop     atomic.Uint32 // 1 = shut down
	hot      atomic.Uint32 // 1 = recent activity
	lastHot  atomic.Int64  // unix nanos of the last activity
	cooldown int64
}

// New returns flags with the given cooldown (DefaultCooldown when zero).
func New(cooldown time.Duration) *Flags {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Flags{cooldown: int64(cooldown)}
}

// ============================================================================
// ACTIVITY SIGNALING
// ============================================================================

// SignalActivity marks the group as active.
//
//go:norace
func (f *Flags) SignalActivity() {
	f.lastHot.Store(time.Now().UnixNano())
	f.hot.Store(1)
}

// PollCooldown clears the hot flag once the cooldown has elapsed.
//
//go:norace
func (f *Flags) PollCooldown() {
	if f.hot.Load() == 1 && time.Now().UnixNano()-f.lastHot.Load() > f.cooldown {
		f.hot.Store(0)
	}
}

// Hot reports recent activity.
func (f *Flags) Hot() bool { return f.hot.Load() == 1 }

// ============================================================================
// SHUTDOWN
// ============================================================================

// Shutdown asks every worker polling these flags to return.
func (f *Flags) Shutdown() { f.stop.Store(1) }

// Stopped reports whether Shutdown was called.
//
//go:norace
func (f *Flags) Stopped() bool { return f.stop.Load() != 0 }

// Watch calls Shutdown when ctx is done and returns ctx.Err().
// It blocks; run it next to the workers it governs.
func (f *Flags) Watch(ctx context.Context) error {
	<-ctx.Done()
	f.Shutdown()
	return ctx.Err()
}
