// ════════════════════════════════════════════════════════════════════════════════════════════════
// 🔀 SORTER SERVICE
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: SSPlus Hasher Bridge
// Component: Result Stream → Collision Table → Pair Queue
//
// Description:
//   Owns the hasher for its whole lifetime. A background loop busy-polls the result
//   stream slot by slot, feeds valid readings into the collision table and queues the
//   pairs it reports. Job updates reprogram the hasher and reset the loop under the
//   same lock, so the loop sees either the old job or the new one, never a mix.
//
// Threading model:
//   - One mutex serialises the table, the queue, the cursor and every hardware write
//   - Run executes the loop on a locked OS thread, optionally pinned to one core
//   - UpdateJob / TryPop / Stop may be called from any goroutine
//
// Validity:
//   After a reset the loop ignores readings until the trial value drops below the
//   previous reading. Within one job the hasher reports increasing trials, so the
//   first drop marks the point where the stream wrapped into the new job.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package sorter

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ssplus/collide"
	"ssplus/constants"
	"ssplus/control"
	"ssplus/cpu"
	"ssplus/pairq"
	"ssplus/program"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// HARDWARE SURFACES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Instructions is the write side of the hasher (iram.Channel).
type Instructions interface {
	Slots() uint32
	Upload(prog []program.Instruction) error
	Halt()
	Start()
}

// Results is the read side of the hasher (pram.Stream).
type Results interface {
	Read(cursor uint32) collide.Point
	Len() uint32
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TYPE DEFINITIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// ErrProgramTooLarge rejects a job whose program exceeds the instruction window.
var ErrProgramTooLarge = errors.New("program exceeds instruction window")

// State is the hasher state as driven by the service.
type State uint32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Found is a collision pair tagged with the job it was detected in.
type Found struct {
	collide.Pair
	Job uint64
}

// Stats is a snapshot of the table counters plus the loop counters.
type Stats struct {
	collide.Stats
	Reads    uint64 // stream slots read since the last job update
	Consumed uint64 // pairs handed out by TryPop since the last job update
	MaxTrial uint32 // highest trial inserted since the last job update
	Job      uint64 // sequence number of the current job, 0 before the first
	State    State
}

// Options configures a Service. Zero table fields take the hardware defaults.
type Options struct {
	Logger *zap.Logger

	Capacity   uint32
	ProbeLimit uint32
	C1, C2     uint32

	// CPU pins the loop thread to one core; negative leaves it unpinned.
	CPU int

	// DrainOnUpdate drops pairs of the superseded job on UpdateJob.
	DrainOnUpdate bool
}

// Service bridges one hasher to its pair consumers.
type Service struct {
	mu sync.Mutex

	ins   Instructions
	res   Results
	table *collide.Table
	queue *pairq.Queue[Found]
	flags *control.Flags
	log   *zap.Logger
	opts  Options

	state      State
	job        uint64
	jobChanged bool

	// loop state
	cursor uint32
	last   uint32
	valid  bool

	// per-job counters
	reads    uint64
	consumed uint64
	maxTrial uint32
	started  time.Time
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONSTRUCTOR
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// New binds a service to the hasher and halts it until the first job arrives.
func New(ins Instructions, res Results, opts Options) *Service {
	if opts.Capacity == 0 {
		opts.Capacity = constants.TableCapacity
	}
	if opts.ProbeLimit == 0 {
		opts.ProbeLimit = constants.ProbeLimit
	}
	if opts.C1 == 0 && opts.C2 == 0 {
		opts.C1, opts.C2 = constants.ProbeC1, constants.ProbeC2
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Service{
		ins:     ins,
		res:     res,
		table:   collide.New(opts.Capacity, opts.ProbeLimit, opts.C1, opts.C2),
		queue:   pairq.New[Found](constants.PairQueueInit),
		flags:   control.New(0),
		log:     opts.Logger.Named("sorter"),
		opts:    opts,
		started: time.Now(),
	}
	ins.Halt()
	s.log.Info("hasher halted",
		zap.Uint32("table_capacity", opts.Capacity),
		zap.Uint32("probe_limit", opts.ProbeLimit),
		zap.Uint32("stream_len", res.Len()))
	return s
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// JOB CONTROL
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// UpdateJob reprograms the hasher for t and restarts collection.
// A template that does not build, or a program that does not fit the
// instruction window, leaves the current job running.
func (s *Service) UpdateJob(t *program.Template) error {
	prog, err := program.Build(t)
	if err != nil {
		return fmt.Errorf("sorter: update job: %w", err)
	}
	if n := s.ins.Slots(); uint32(len(prog)) > n {
		return fmt.Errorf("sorter: update job: %w: %d instructions, %d slots", ErrProgramTooLarge, len(prog), n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		s.ins.Halt()
		s.state = Stopped
	}
	if err := s.ins.Upload(prog); err != nil {
		return fmt.Errorf("sorter: update job: %w", err)
	}

	s.flushLocked()
	if s.opts.DrainOnUpdate {
		if n := s.queue.Drain(); n > 0 {
			s.log.Debug("dropped pairs of superseded job", zap.Int("pairs", n), zap.Uint64("job", s.job))
		}
	}

	s.cursor = 0
	s.last = 0
	s.jobChanged = true
	s.job++

	s.ins.Start()
	s.state = Running
	s.log.Info("job started", zap.Uint64("job", s.job), zap.Int("instructions", len(prog)))
	return nil
}

// Stop halts the hasher. Readings are ignored until the next UpdateJob.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ins.Halt()
	s.state = Stopped
}

// flushLocked reports the finished job and clears the table and counters.
func (s *Service) flushLocked() {
	if s.job > 0 {
		st := s.table.Stats()
		elapsed := time.Since(s.started)
		secs := elapsed.Seconds()

		fields := []zap.Field{
			zap.Uint64("job", s.job),
			zap.Duration("elapsed", elapsed),
			zap.Uint64("pairs", st.Pairs),
			zap.Uint64("consumed", s.consumed),
			zap.Uint64("discarded", st.Discarded),
			zap.Uint64("duplicates", st.Duplicates),
			zap.Uint64("calls", st.Calls),
			zap.Uint64("reads", s.reads),
			zap.Float64("occupancy_pct", 100*float64(st.Occupied)/float64(st.Capacity)),
		}
		if secs > 0 {
			fields = append(fields,
				zap.Float64("pairs_per_sec", float64(st.Pairs)/secs),
				zap.Float64("calls_per_sec", float64(st.Calls)/secs))
		}
		if st.Calls > 0 {
			fields = append(fields, zap.Duration("avg_call", elapsed/time.Duration(st.Calls)))
		}
		if uint64(s.maxTrial) > st.Calls {
			fields = append(fields, zap.Uint64("skipped", uint64(s.maxTrial)-st.Calls))
		}
		if st.Pairs > 0 {
			// birthday bound: expected pairs for k draws from 2^32 tails is k²/2N
			fields = append(fields, zap.Float64("k2_2n_per_pair",
				0.5*float64(st.Calls)*float64(st.Calls)/4294967296/float64(st.Pairs)))
		}
		s.log.Info("job finished", fields...)
	}

	s.table.Flush()
	s.reads = 0
	s.consumed = 0
	s.maxTrial = 0
	s.started = time.Now()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONSUMER SIDE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// TryPop returns the oldest queued pair without waiting.
func (s *Service) TryPop() (Found, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.queue.TryPop()
	if ok {
		s.consumed++
	}
	return f, ok
}

// Stats returns a snapshot of the current job's counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Stats:    s.table.Stats(),
		Reads:    s.reads,
		Consumed: s.consumed,
		MaxTrial: s.maxTrial,
		Job:      s.job,
		State:    s.state,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// BACKGROUND LOOP
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Run polls the result stream until ctx ends. It returns nil once ctx is
// cancelled or its deadline passes, and the pinning error if the loop thread
// cannot be placed.
// A Service runs at most once.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.flags.Watch(gctx) })
	g.Go(func() error {
		defer cancel()
		return s.loop()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (s *Service) loop() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := cpu.Pin(s.opts.CPU); err != nil {
		return fmt.Errorf("sorter: %w", err)
	}
	s.log.Debug("loop started", zap.Int("cpu", s.opts.CPU))

	for !s.flags.Stopped() {
		s.step()
	}

	s.log.Debug("loop stopped")
	return nil
}

// step reads one stream slot and feeds it to the table. An all-zero slot has
// never been written by the hasher and is skipped without touching validity.
func (s *Service) step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jobChanged {
		s.jobChanged = false
		s.valid = false
	}

	p := s.res.Read(s.cursor)
	s.cursor = (s.cursor + 1) % s.res.Len()
	s.reads++

	if s.state != Running {
		s.valid = false
		s.last = p.Trial
		return
	}
	if p == (collide.Point{}) {
		return
	}

	if s.last > p.Trial {
		s.valid = true
	}
	s.last = p.Trial
	if !s.valid {
		return
	}

	if p.Trial > s.maxTrial {
		s.maxTrial = p.Trial
	}
	if pair, ok := s.table.Insert(p); ok {
		s.queue.Push(Found{Pair: pair, Job: s.job})
	}
}
