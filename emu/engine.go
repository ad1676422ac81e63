// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: engine.go - Software stand-in for the SSPlus hasher
//
// Purpose:
//   - Lets the bridge run end to end on machines without the FPGA.
//   - Follows the run indicator in the instruction window and fills the
//     result window with (trial, tail) readings while released.
//
// Notes:
//   - Each start, or each change of instruction 0, seeds a new job and
//     restarts at trial 1, slot 0. Trials increase by one per slot, so the stream only ever drops
//     where fresh readings meet the previous lap.
//   - Tails are sha256(seed ‖ trial) truncated to TailBits, which makes
//     every reported pair checkable with Verify.
// ─────────────────────────────────────────────────────────────────────────────

package emu

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"ssplus/collide"
	"ssplus/control"
	"ssplus/iram"
	"ssplus/pram"
	"ssplus/program"
)

// Engine emulates one hasher.
type Engine struct {
	ins   *iram.Channel
	out   *pram.Stream
	mask  uint32
	burst uint32
	flags *control.Flags

	seed    atomic.Pointer[[32]byte]
	written atomic.Uint64

	running bool
	trial   uint32
	cursor  uint32
}

// New binds an engine to the instruction and result windows.
// tailBits (1..32) sets how many tail bits survive, burst how many readings
// a Step writes.
func New(ins *iram.Channel, out *pram.Stream, tailBits uint, burst uint32) *Engine {
	if tailBits == 0 || tailBits > 32 {
		panic("emu: tail bits must be in 1..32")
	}
	if burst == 0 {
		burst = 1
	}
	e := &Engine{
		ins:   ins,
		out:   out,
		mask:  uint32(uint64(1)<<tailBits - 1),
		burst: burst,
		flags: control.New(0),
	}
	e.seed.Store(new([32]byte))
	return e
}

// Seed derives the job seed from the instruction at slot 0.
func Seed(inst *program.Instruction) [32]byte {
	h := sha256.New()
	var op [4]byte
	binary.BigEndian.PutUint32(op[:], inst.Opcode)
	h.Write(op[:])
	h.Write(inst.Data[:])

	var s [32]byte
	h.Sum(s[:0])
	return s
}

// Tail returns the emulated hash tail of trial under seed, before masking.
func Tail(seed [32]byte, trial uint32) uint32 {
	var buf [36]byte
	copy(buf[:], seed[:])
	binary.LittleEndian.PutUint32(buf[32:], trial)
	sum := sha256.Sum256(buf[:])
	return binary.BigEndian.Uint32(sum[:4])
}

// Verify reports whether both trials of p produce the same tail for the
// current job.
func (e *Engine) Verify(p collide.Pair) bool {
	seed := *e.seed.Load()
	return p.A != p.B && Tail(seed, p.A)&e.mask == Tail(seed, p.B)&e.mask
}

// Written returns the number of readings produced since New.
func (e *Engine) Written() uint64 { return e.written.Load() }

// Step writes one burst if the hasher is released and returns the number of
// readings written. Not safe for concurrent use with itself.
func (e *Engine) Step() int {
	if !e.ins.Running() {
		e.running = false
		return 0
	}

	// a reprogram can halt and release faster than one step, so a changed
	// slot 0 also counts as a new job
	inst := e.ins.Read(0)
	seed := Seed(&inst)
	if !e.running || seed != *e.seed.Load() {
		e.seed.Store(&seed)
		e.running = true
		e.trial = 1
		e.cursor = 0
	}

	for i := uint32(0); i < e.burst; i++ {
		e.out.Write(e.cursor, collide.Point{Trial: e.trial, Tail: Tail(seed, e.trial) & e.mask})
		e.trial++
		e.cursor = (e.cursor + 1) % e.out.Len()
	}
	e.written.Add(uint64(e.burst))
	return int(e.burst)
}

// Run steps the engine until ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.flags.Watch(gctx) })
	g.Go(func() error {
		defer cancel()
		for !e.flags.Stopped() {
			if e.Step() == 0 {
				runtime.Gosched()
			}
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
