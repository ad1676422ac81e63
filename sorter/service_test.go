// ════════════════════════════════════════════════════════════════════════════════════════════════
// 🧪 TEST SUITE: SORTER SERVICE
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Drives the loop one slot at a time over heap-backed windows, then runs it for real
// against a static stream to cover the goroutine lifecycle.
// ════════════════════════════════════════════════════════════════════════════════════════════════

package sorter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ssplus/collide"
	"ssplus/constants"
	"ssplus/iram"
	"ssplus/mmio"
	"ssplus/pram"
	"ssplus/program"
)

// wrapped is a stream lap where the hasher wrapped after slot 3: slots 4..7
// belong to the new job and slots 4 and 6 share tail 9.
var wrapped = []collide.Point{
	{Trial: 5, Tail: 50}, {Trial: 6, Tail: 60}, {Trial: 7, Tail: 70}, {Trial: 8, Tail: 80},
	{Trial: 1, Tail: 9}, {Trial: 2, Tail: 20}, {Trial: 3, Tail: 9}, {Trial: 4, Tail: 40},
}

func rig(t *testing.T, opts Options) (*Service, *iram.Channel, *pram.Stream) {
	t.Helper()

	ir, err := mmio.Heap(constants.InstructionSize)
	require.NoError(t, err)
	pr, err := mmio.Heap(len(wrapped) * 8)
	require.NoError(t, err)

	ch, err := iram.New(ir)
	require.NoError(t, err)
	st, err := pram.New(pr)
	require.NoError(t, err)
	for i, p := range wrapped {
		st.Write(uint32(i), p)
	}

	if opts.Capacity == 0 {
		opts.Capacity, opts.ProbeLimit = 64, 4
	}
	return New(ch, st, opts), ch, st
}

func steps(s *Service, n int) {
	for i := 0; i < n; i++ {
		s.step()
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// JOB CONTROL
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestNewHaltsHasher(t *testing.T) {
	s, ch, _ := rig(t, Options{})
	assert.False(t, ch.Running(), "heap windows start zeroed, which reads as running")
	assert.Equal(t, Stopped, s.Stats().State)
	assert.Zero(t, s.Stats().Job)
}

func TestUpdateJobUploadsAndStarts(t *testing.T) {
	s, ch, _ := rig(t, Options{})
	tmpl := program.CanonicalTemplate()

	require.NoError(t, s.UpdateJob(tmpl))

	prog, err := program.Build(tmpl)
	require.NoError(t, err)
	for i := range prog {
		assert.Equal(t, prog[i], ch.Read(uint32(i)), "slot %d", i)
	}
	assert.True(t, ch.Running())

	st := s.Stats()
	assert.Equal(t, Running, st.State)
	assert.Equal(t, uint64(1), st.Job)
}

func TestUpdateJobRejectsMalformedTemplate(t *testing.T) {
	s, ch, _ := rig(t, Options{})
	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))

	err := s.UpdateJob(&program.Template{})
	require.ErrorIs(t, err, program.ErrMalformedTemplate)

	assert.True(t, ch.Running(), "current job keeps running")
	assert.Equal(t, uint64(1), s.Stats().Job)
}

type failingUpload struct{ halted bool }

func (f *failingUpload) Slots() uint32                      { return constants.MaxInstructions }
func (f *failingUpload) Upload([]program.Instruction) error { return errors.New("bus fault") }
func (f *failingUpload) Halt()                              { f.halted = true }
func (f *failingUpload) Start()                             { f.halted = false }

func TestUpdateJobUploadFailure(t *testing.T) {
	pr, err := mmio.Heap(64)
	require.NoError(t, err)
	st, err := pram.New(pr)
	require.NoError(t, err)

	ins := &failingUpload{}
	s := New(ins, st, Options{Capacity: 64, ProbeLimit: 4})

	require.Error(t, s.UpdateJob(program.CanonicalTemplate()))
	assert.True(t, ins.halted)
	assert.Equal(t, Stopped, s.Stats().State)
}

// window records hardware calls and reports a settable slot count.
type window struct {
	slots   uint32
	halts   int
	uploads int
}

func (w *window) Slots() uint32                      { return w.slots }
func (w *window) Upload([]program.Instruction) error { w.uploads++; return nil }
func (w *window) Halt()                              { w.halts++ }
func (w *window) Start()                             {}

func TestUpdateJobRejectsOversizedProgram(t *testing.T) {
	pr, err := mmio.Heap(64)
	require.NoError(t, err)
	st, err := pram.New(pr)
	require.NoError(t, err)

	ins := &window{slots: constants.MaxInstructions}
	s := New(ins, st, Options{Capacity: 64, ProbeLimit: 4})
	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))
	require.Equal(t, 1, ins.halts)

	ins.slots = 8
	err = s.UpdateJob(program.CanonicalTemplate())
	require.ErrorIs(t, err, ErrProgramTooLarge)

	assert.Equal(t, 1, ins.halts, "hasher is not halted for a job that cannot load")
	assert.Equal(t, 1, ins.uploads)
	assert.Equal(t, Running, s.Stats().State)
	assert.Equal(t, uint64(1), s.Stats().Job)
}

func TestStop(t *testing.T) {
	s, ch, _ := rig(t, Options{})
	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))

	s.Stop()
	assert.False(t, ch.Running())
	assert.Equal(t, Stopped, s.Stats().State)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// LOOP
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestLoopWaitsForWrap(t *testing.T) {
	s, _, _ := rig(t, Options{})
	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))

	steps(s, 4)
	st := s.Stats()
	assert.Zero(t, st.Calls, "increasing trials of the old lap are ignored")
	assert.Equal(t, uint64(4), st.Reads)

	steps(s, 4)
	st = s.Stats()
	assert.Equal(t, uint64(4), st.Calls, "every slot from the drop on is inserted")
	assert.Equal(t, uint64(1), st.Pairs)
	assert.Equal(t, uint32(2), st.Occupied)
	assert.Equal(t, uint32(4), st.MaxTrial)

	f, ok := s.TryPop()
	require.True(t, ok)
	assert.Equal(t, Found{Pair: collide.Pair{A: 3, B: 1}, Job: 1}, f)
	_, ok = s.TryPop()
	assert.False(t, ok)
	assert.Equal(t, uint64(1), s.Stats().Consumed)

	steps(s, 8)
	assert.Equal(t, uint64(12), s.Stats().Calls, "validity holds across laps")
}

func TestLoopSkipsUnwrittenSlots(t *testing.T) {
	s, _, st := rig(t, Options{})
	lap := []collide.Point{{Trial: 1, Tail: 77}, {Trial: 2, Tail: 0}, {Trial: 3, Tail: 88}}
	for i := uint32(0); i < st.Len(); i++ {
		st.Write(i, collide.Point{})
	}
	for i, p := range lap {
		st.Write(uint32(i), p)
	}
	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))

	steps(s, 16)
	_, ok := s.TryPop()
	assert.False(t, ok, "zero slots never pair")

	got := s.Stats()
	assert.Equal(t, uint64(16), got.Reads)
	assert.Equal(t, uint64(3), got.Calls, "only the written slots of the second lap")
	assert.Equal(t, uint64(3), got.Inserted)
	assert.Zero(t, got.Duplicates)
	assert.Zero(t, got.Pairs)

	// the next lap re-reads the same three readings
	steps(s, 8)
	assert.Equal(t, uint64(3), s.Stats().Duplicates)
}

func TestLoopIgnoresStreamWhileStopped(t *testing.T) {
	s, _, _ := rig(t, Options{})

	steps(s, 16)
	assert.Zero(t, s.Stats().Calls, "no job yet")

	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))
	steps(s, 8)
	require.Equal(t, uint64(4), s.Stats().Calls)

	s.Stop()
	steps(s, 16)
	assert.Equal(t, uint64(4), s.Stats().Calls)
}

func TestJobUpdateResetsLoop(t *testing.T) {
	s, _, _ := rig(t, Options{DrainOnUpdate: true})
	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))
	steps(s, 8)
	require.Equal(t, uint64(1), s.Stats().Pairs)

	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))
	st := s.Stats()
	assert.Zero(t, st.Calls)
	assert.Zero(t, st.Occupied)
	assert.Zero(t, st.Reads)
	_, ok := s.TryPop()
	assert.False(t, ok, "pairs of the superseded job are drained")

	// cursor restarts at slot 0, so validity needs the wrap again
	steps(s, 4)
	assert.Zero(t, s.Stats().Calls)
	steps(s, 4)
	f, ok := s.TryPop()
	require.True(t, ok)
	assert.Equal(t, uint64(2), f.Job)
}

func TestJobUpdateKeepsQueueWithoutDrain(t *testing.T) {
	s, _, _ := rig(t, Options{DrainOnUpdate: false})
	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))
	steps(s, 8)
	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))

	f, ok := s.TryPop()
	require.True(t, ok)
	assert.Equal(t, uint64(1), f.Job)
}

func TestPairsPopInDetectionOrder(t *testing.T) {
	s, _, st := rig(t, Options{})
	lap := []collide.Point{
		{Trial: 9, Tail: 0}, {Trial: 1, Tail: 11}, {Trial: 2, Tail: 12}, {Trial: 3, Tail: 13},
		{Trial: 4, Tail: 11}, {Trial: 5, Tail: 12}, {Trial: 6, Tail: 13}, {Trial: 7, Tail: 0},
	}
	for i, p := range lap {
		st.Write(uint32(i), p)
	}
	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))
	steps(s, 8)

	want := []collide.Pair{{A: 4, B: 1}, {A: 5, B: 2}, {A: 6, B: 3}}
	for _, p := range want {
		f, ok := s.TryPop()
		require.True(t, ok)
		assert.Equal(t, p, f.Pair)
	}
	_, ok := s.TryPop()
	assert.False(t, ok)
}

func TestJobFinishedIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s, _, _ := rig(t, Options{Logger: zap.New(core)})

	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))
	steps(s, 8)
	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))

	finished := logs.FilterMessage("job finished").AllUntimed()
	require.Len(t, finished, 1)
	fields := finished[0].ContextMap()
	assert.EqualValues(t, 1, fields["job"])
	assert.EqualValues(t, 1, fields["pairs"])
	assert.EqualValues(t, 4, fields["calls"])
	assert.Contains(t, fields, "k2_2n_per_pair")
	assert.Len(t, logs.FilterMessage("job started").All(), 2)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func TestRunCollectsUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, _ := rig(t, Options{CPU: -1, DrainOnUpdate: true})
	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	pop := func(job uint64) {
		var f Found
		require.Eventually(t, func() bool {
			var ok bool
			f, ok = s.TryPop()
			return ok
		}, 5*time.Second, time.Millisecond)
		assert.Equal(t, Found{Pair: collide.Pair{A: 3, B: 1}, Job: job}, f)
	}
	pop(1)

	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))
	pop(2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReturnsNilOnDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, _ := rig(t, Options{CPU: -1})
	require.NoError(t, s.UpdateJob(program.CanonicalTemplate()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, s.Run(ctx))
}

func BenchmarkStep(b *testing.B) {
	ir, _ := mmio.Heap(constants.InstructionSize)
	pr, _ := mmio.Heap(constants.ResultSize)
	ch, _ := iram.New(ir)
	st, _ := pram.New(pr)
	for i := uint32(0); i < st.Len(); i++ {
		st.Write(i, collide.Point{Trial: st.Len() - i, Tail: i * 2654435761})
	}
	s := New(ch, st, Options{Capacity: 1 << 16, ProbeLimit: 16})
	if err := s.UpdateJob(program.CanonicalTemplate()); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.step()
		if i&1023 == 0 {
			s.TryPop()
		}
	}
}
