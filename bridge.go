// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: bridge.go - Hasher windows, sorter and pair consumer in one place
//
// Purpose:
//   - Maps the instruction and result windows (or heap stand-ins driven by
//     the emulator) and binds the sorter service to them.
//   - Runs the sorter loop, the emulator and the pair consumer as one
//     errgroup that ends with the command's context.
//
// Notes:
//   - Mapping failures are fatal: the hardware is there at startup or not at all.
//   - The consumer spins with PAUSE while pairs flow and backs off to short
//     sleeps once the control cooldown expires.
// ─────────────────────────────────────────────────────────────────────────────

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ssplus/config"
	"ssplus/control"
	"ssplus/cpu"
	"ssplus/emu"
	"ssplus/iram"
	"ssplus/mmio"
	"ssplus/pairstore"
	"ssplus/pram"
	"ssplus/program"
	"ssplus/sorter"
)

// idleBackoff is the consumer's sleep once the hot window has expired.
const idleBackoff = 200 * time.Microsecond

type bridge struct {
	cfg *config.Config
	log *zap.Logger

	regions []*mmio.Region
	svc     *sorter.Service
	engine  *emu.Engine      // nil on hardware
	store   *pairstore.Store // nil when archiving is off
	flags   *control.Flags

	// consumer counters, read after the run group returns
	found    uint64
	rejected uint64
}

// openBridge prepares one hasher. With emulate set the windows live on the
// heap and a software engine fills the result stream.
func openBridge(cfg *config.Config, log *zap.Logger, emulate bool, label string) (*bridge, error) {
	b := &bridge{cfg: cfg, log: log, flags: control.New(0)}
	ready := false
	defer func() {
		if !ready {
			b.Close()
		}
	}()

	// PHASE 2: memory windows
	open := func(rc config.RegionConfig) (*mmio.Region, error) {
		if emulate {
			return mmio.Heap(rc.Size)
		}
		return mmio.Map(cfg.Device, rc.Base, rc.Size)
	}
	ir, err := open(cfg.Instructions)
	if err != nil {
		return nil, fmt.Errorf("instruction window: %w", err)
	}
	b.regions = append(b.regions, ir)
	pr, err := open(cfg.Results)
	if err != nil {
		return nil, fmt.Errorf("result window: %w", err)
	}
	b.regions = append(b.regions, pr)

	ch, err := iram.New(ir)
	if err != nil {
		return nil, err
	}
	st, err := pram.New(pr)
	if err != nil {
		return nil, err
	}
	log.Info("windows ready",
		zap.Bool("emulated", emulate),
		zap.Uint32("slots", ch.Slots()),
		zap.Uint32("entries", st.Len()))

	b.svc = sorter.New(ch, st, sorter.Options{
		Logger:        log,
		Capacity:      cfg.Table.Capacity,
		ProbeLimit:    cfg.Table.ProbeLimit,
		C1:            cfg.Table.C1,
		C2:            cfg.Table.C2,
		CPU:           cfg.Sorter.CPU,
		DrainOnUpdate: cfg.Sorter.DrainOnUpdate,
	})
	if emulate {
		b.engine = emu.New(ch, st, cfg.Emu.TailBits, cfg.Emu.Burst)
	}

	if cfg.Store.Path != "" {
		if b.store, err = pairstore.Open(cfg.Store.Path, label); err != nil {
			return nil, err
		}
		log.Info("archiving pairs", zap.String("path", cfg.Store.Path), zap.Stringer("session", b.store.Session()))
	}
	ready = true
	return b, nil
}

// Close halts the hasher and releases the archive and the windows.
func (b *bridge) Close() error {
	var errs []error
	if b.svc != nil {
		b.svc.Stop()
	}
	if b.store != nil {
		errs = append(errs, b.store.Close())
	}
	for _, r := range b.regions {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

// run drives the hasher until ctx ends. A non-empty reload path is re-read
// and programmed as a new job on every SIGHUP.
func (b *bridge) run(ctx context.Context, reload string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.svc.Run(gctx) })
	if b.engine != nil {
		g.Go(func() error { return b.engine.Run(gctx) })
	}
	g.Go(func() error { return b.flags.Watch(gctx) })
	g.Go(b.consume)
	if reload != "" {
		g.Go(func() error { return b.watchReload(gctx, reload) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// consume pops pairs until the flags stop, logging and archiving each one.
func (b *bridge) consume() error {
	last := time.Now()
	for !b.flags.Stopped() {
		f, ok := b.svc.TryPop()
		if !ok {
			b.flags.PollCooldown()
			if b.flags.Hot() {
				cpu.Relax()
			} else {
				time.Sleep(idleBackoff)
			}
			continue
		}
		b.flags.SignalActivity()

		now := time.Now()
		b.found++
		fields := []zap.Field{
			zap.String("pair", fmt.Sprintf("%08x-%08x", f.A, f.B)),
			zap.Uint64("job", f.Job),
			zap.Duration("since_last", now.Sub(last)),
		}
		last = now
		if b.engine != nil && !b.engine.Verify(f.Pair) {
			b.rejected++
			b.log.Warn("pair failed verification", fields...)
			continue
		}
		b.log.Info("got a pair", fields...)

		if b.store != nil {
			if err := b.store.Record(f.Job, f.Pair); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *bridge) watchReload(ctx context.Context, path string) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	defer signal.Stop(sig)
	return b.reloadOn(ctx, sig, path)
}

// reloadOn programs the template at path as a new job for every value on sig.
// A template that fails to load or build leaves the current job running.
func (b *bridge) reloadOn(ctx context.Context, sig <-chan os.Signal, path string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sig:
			t, err := program.LoadTemplate(path)
			if err == nil {
				err = b.svc.UpdateJob(t)
			}
			if err != nil {
				b.log.Error("reload template", zap.String("path", path), zap.Error(err))
			}
		}
	}
}

// summary prints the counters of the current job.
func (b *bridge) summary(w io.Writer) {
	st := b.svc.Stats()
	fmt.Fprintf(w, "job %d (%s)\n", st.Job, st.State)
	fmt.Fprintf(w, "  reads      %d\n", st.Reads)
	fmt.Fprintf(w, "  calls      %d\n", st.Calls)
	fmt.Fprintf(w, "  pairs      %d\n", st.Pairs)
	fmt.Fprintf(w, "  consumed   %d\n", st.Consumed)
	fmt.Fprintf(w, "  discarded  %d\n", st.Discarded)
	fmt.Fprintf(w, "  duplicates %d\n", st.Duplicates)
	fmt.Fprintf(w, "  occupied   %d/%d\n", st.Occupied, st.Capacity)
	fmt.Fprintf(w, "found %d pairs", b.found)
	if b.engine != nil {
		fmt.Fprintf(w, ", %d verified, %d rejected", b.found-b.rejected, b.rejected)
	}
	fmt.Fprintln(w)
	if b.store != nil {
		fmt.Fprintf(w, "session %s\n", b.store.Session())
	}
}
