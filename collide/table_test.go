// Package collide provides correctness tests for the bounded quadratic-probing
// collision table. These tests validate placement, collision emission,
// cell clearing on collision, saturation discard and flush semantics.
package collide

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countTagged walks the bitmap and verifies free cells hold no data.
func countTagged(t *testing.T, tb *Table) uint32 {
	t.Helper()
	var n uint32
	for i := uint32(0); i < tb.Capacity(); i++ {
		p, ok := tb.Cell(i)
		if ok {
			n++
			continue
		}
		require.Equal(t, Point{}, p, "free cell %d holds data", i)
	}
	return n
}

// -----------------------------------------------------------------------------
// ░░ Constructor ░░
// -----------------------------------------------------------------------------

func TestNewRejectsBadCapacity(t *testing.T) {
	assert.Panics(t, func() { New(0, 4, 1, 1) })
	assert.Panics(t, func() { New(12, 4, 1, 1) })
	assert.Panics(t, func() { New(16, 0, 1, 1) })
	assert.NotPanics(t, func() { New(1, 1, 0, 0) })
}

func TestNewIsEmpty(t *testing.T) {
	tb := New(64, 4, 1, 1)
	assert.Equal(t, uint32(64), tb.Capacity())
	assert.Zero(t, tb.Occupied())
	assert.Zero(t, countTagged(t, tb))
}

// -----------------------------------------------------------------------------
// ░░ Collision Detection ░░
// -----------------------------------------------------------------------------

// TestCollisionClearsCell pins the chosen collision policy: the matched cell is
// fully cleared and the occupancy count drops back.
func TestCollisionClearsCell(t *testing.T) {
	tb := New(16, 4, 1, 1)
	before := tb.Occupied()

	_, hit := tb.Insert(Point{Trial: 11, Tail: 5})
	require.False(t, hit)
	p, ok := tb.Cell(5)
	require.True(t, ok)
	require.Equal(t, Point{Trial: 11, Tail: 5}, p)

	pair, hit := tb.Insert(Point{Trial: 22, Tail: 5})
	require.True(t, hit)
	assert.Equal(t, Pair{A: 22, B: 11}, pair)
	assert.Equal(t, before, tb.Occupied())

	p, ok = tb.Cell(5)
	assert.False(t, ok)
	assert.Equal(t, Point{}, p)

	// The freed cell accepts the next point of that tail as a fresh entry.
	_, hit = tb.Insert(Point{Trial: 33, Tail: 5})
	assert.False(t, hit)
	assert.Equal(t, uint32(1), tb.Occupied())
}

func TestCollisionAlongProbeSequence(t *testing.T) {
	tb := New(16, 4, 1, 1)
	tb.Insert(Point{Trial: 1, Tail: 3})  // cell 3
	tb.Insert(Point{Trial: 2, Tail: 19}) // 19&15=3 taken, i=1 → 21&15=5
	p, ok := tb.Cell(5)
	require.True(t, ok)
	require.Equal(t, uint32(19), p.Tail)

	pair, hit := tb.Insert(Point{Trial: 9, Tail: 19})
	require.True(t, hit)
	assert.Equal(t, Pair{A: 9, B: 2}, pair)
	_, ok = tb.Cell(5)
	assert.False(t, ok)
	_, ok = tb.Cell(3)
	assert.True(t, ok, "unrelated occupant must survive")
}

func TestDuplicateReportKeepsOccupant(t *testing.T) {
	tb := New(16, 4, 1, 1)
	tb.Insert(Point{Trial: 7, Tail: 8})
	_, hit := tb.Insert(Point{Trial: 7, Tail: 8})
	assert.False(t, hit)
	assert.Equal(t, uint32(1), tb.Occupied())
	assert.Equal(t, uint64(1), tb.Stats().Duplicates)
}

func TestZeroPointIsRepresentable(t *testing.T) {
	tb := New(16, 4, 1, 1)
	_, hit := tb.Insert(Point{})
	require.False(t, hit)
	require.Equal(t, uint32(1), tb.Occupied())
	p, ok := tb.Cell(0)
	require.True(t, ok)
	require.Equal(t, Point{}, p)

	pair, hit := tb.Insert(Point{Trial: 4, Tail: 0})
	require.True(t, hit)
	assert.Equal(t, Pair{A: 4, B: 0}, pair)
}

// -----------------------------------------------------------------------------
// ░░ Saturation ░░
// -----------------------------------------------------------------------------

func TestDiscardUnderSaturation(t *testing.T) {
	tb := New(16, 4, 1, 1)
	for tail := uint32(1); tail < 16; tail++ {
		_, hit := tb.Insert(Point{Trial: tail, Tail: tail})
		require.False(t, hit)
	}
	require.Equal(t, uint32(15), tb.Occupied())

	// Tail 17 probes cells 1, 3, 7, 13: all held by other tails.
	_, hit := tb.Insert(Point{Trial: 99, Tail: 17})
	assert.False(t, hit)
	assert.Equal(t, uint32(15), tb.Occupied())
	assert.Equal(t, uint64(1), tb.Stats().Discarded)
	_, ok := tb.Cell(0)
	assert.False(t, ok, "the only free cell is outside the probe sequence")
}

// -----------------------------------------------------------------------------
// ░░ Flush ░░
// -----------------------------------------------------------------------------

func TestFlushIdempotence(t *testing.T) {
	tb := New(32, 4, 1, 1)
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 40; i++ {
		tb.Insert(Point{Trial: r.Uint32(), Tail: r.Uint32()})
	}
	require.NotZero(t, tb.Occupied())

	for round := 0; round < 2; round++ {
		tb.Flush()
		assert.Zero(t, tb.Occupied())
		assert.Zero(t, countTagged(t, tb))
		assert.Equal(t, Stats{Capacity: 32}, tb.Stats())
	}

	// Behaves as a fresh table.
	fresh := New(32, 4, 1, 1)
	seq := []Point{{1, 5}, {2, 5}, {3, 37}, {4, 69}, {5, 37}}
	for _, p := range seq {
		gotPair, gotHit := tb.Insert(p)
		wantPair, wantHit := fresh.Insert(p)
		assert.Equal(t, wantHit, gotHit)
		assert.Equal(t, wantPair, gotPair)
	}
	assert.Equal(t, fresh.Stats(), tb.Stats())
}

// -----------------------------------------------------------------------------
// ░░ Randomized Invariants ░░
// -----------------------------------------------------------------------------

func TestCapacityInvariant(t *testing.T) {
	tb := New(64, 8, 1, 1)
	r := rand.New(rand.NewSource(12345))
	for i := 0; i < 5000; i++ {
		// Narrow tail space forces frequent collisions and saturation.
		tb.Insert(Point{Trial: uint32(i + 1), Tail: uint32(r.Intn(96))})
		require.LessOrEqual(t, tb.Occupied(), tb.Capacity())
		if i%97 == 0 {
			require.Equal(t, tb.Occupied(), countTagged(t, tb))
		}
	}
	s := tb.Stats()
	assert.Equal(t, uint64(5000), s.Calls)
	assert.Equal(t, s.Calls, s.Inserted+s.Pairs+s.Discarded+s.Duplicates)
	assert.Equal(t, uint64(tb.Occupied()), s.Inserted-s.Pairs)
}

func TestPairsShareTail(t *testing.T) {
	tb := New(1<<10, 16, 1, 1)
	tails := make(map[uint32]uint32)
	r := rand.New(rand.NewSource(99))
	for i := uint32(1); i <= 4000; i++ {
		tail := uint32(r.Intn(512))
		if pair, hit := tb.Insert(Point{Trial: i, Tail: tail}); hit {
			require.Equal(t, tails[pair.B], tail)
			require.NotEqual(t, pair.A, pair.B)
		}
		tails[i] = tail
	}
}
