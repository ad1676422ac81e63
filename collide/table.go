// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ QUADRATIC-PROBING COLLISION TABLE
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: SSPlus Hasher Bridge
// Component: Fixed-Capacity Tail → Trial Index
//
// Description:
//   Open-addressing table keyed by the hash tail reported by the hasher. Inserting a
//   tail that is already present yields a collision pair and frees the matched cell.
//   Probing is capped, so worst-case insert cost is bounded and overflow points are
//   dropped and counted instead of growing the table.
//
// Design Principles:
//   - Fixed capacity with power-of-2 sizing for mask arithmetic
//   - Explicit occupancy bitmap instead of a zero sentinel, so {0,0} is a valid point
//   - Flush is allocation-free and resets the diagnostic counters
//   - Single-threaded: the owner serialises access
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package collide

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TYPE DEFINITIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Point is one hasher reading: the trial value (nonce2) and the truncated hash tail.
type Point struct {
	Trial uint32
	Tail  uint32
}

// Pair holds two distinct trial values that produced the same tail.
// A is the incoming trial, B the one already stored.
type Pair struct {
	A uint32
	B uint32
}

// Stats is a snapshot of the table counters since the last Flush.
type Stats struct {
	Calls      uint64 // Insert invocations
	Inserted   uint64 // points stored in a free cell
	Pairs      uint64 // collisions emitted
	Discarded  uint64 // points dropped after the probe budget ran out
	Duplicates uint64 // repeated reports of a stored (trial, tail)
	Occupied   uint32 // currently tagged cells
	Capacity   uint32
}

// Table maps tails to trials with bounded quadratic probing.
//
// MEMORY LAYOUT:
//
//	cells holds the points, used is a bitmap with one bit per cell.
//	A cell is occupied iff its bit is set; cell contents of free cells are zero.
type Table struct {
	cells []Point
	used  []uint64
	mask  uint32
	limit uint32
	c1    uint32
	c2    uint32

	occupied   uint32
	calls      uint64
	inserted   uint64
	pairs      uint64
	discarded  uint64
	duplicates uint64
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONSTRUCTOR
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// New allocates a table with the given capacity and probe parameters.
//
// Panics:
//   - capacity is zero or not a power of two
//   - limit is zero
func New(capacity, limit, c1, c2 uint32) *Table {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic("collide: capacity must be >0 and power of two")
	}
	if limit == 0 {
		panic("collide: probe limit must be >0")
	}
	return &Table{
		cells: make([]Point, capacity),
		used:  make([]uint64, (capacity+63)/64),
		mask:  capacity - 1,
		limit: limit,
		c1:    c1,
		c2:    c2,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CORE OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Insert stores p or reports a collision with a stored point of the same tail.
//
// PROBE SEQUENCE:
//
//	key(i) = (tail + c1*i + c2*i*i) mod capacity, for i in [0, limit).
//	The first free cell stores the point. The first cell holding the same tail
//	with a different trial yields Pair{p.Trial, stored.Trial}; the cell is then
//	fully cleared. If every probed cell holds another tail the point is discarded.
//
// RETURN VALUES:
//   - pair, true:  a collision was found
//   - zero, false: the point was stored, discarded, or is a duplicate report
func (t *Table) Insert(p Point) (Pair, bool) {
	t.calls++

	for i := uint32(0); i < t.limit; i++ {
		key := (p.Tail + t.c1*i + t.c2*i*i) & t.mask
		w, bit := key>>6, uint64(1)<<(key&63)

		// Case 1: free cell - store
		if t.used[w]&bit == 0 {
			t.cells[key] = p
			t.used[w] |= bit
			t.occupied++
			t.inserted++
			return Pair{}, false
		}

		c := t.cells[key]
		if c.Tail != p.Tail {
			continue
		}

		// Case 2: same trial reported again - keep the occupant
		if c.Trial == p.Trial {
			t.duplicates++
			return Pair{}, false
		}

		// Case 3: collision - emit and free the cell
		t.cells[key] = Point{}
		t.used[w] &^= bit
		t.occupied--
		t.pairs++
		return Pair{A: p.Trial, B: c.Trial}, true
	}

	// Probe budget exhausted
	t.discarded++
	return Pair{}, false
}

// Flush empties every cell and resets the counters without releasing storage.
func (t *Table) Flush() {
	clear(t.cells)
	clear(t.used)
	t.occupied = 0
	t.calls = 0
	t.inserted = 0
	t.pairs = 0
	t.discarded = 0
	t.duplicates = 0
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// INSPECTION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Occupied returns the number of stored points.
func (t *Table) Occupied() uint32 { return t.occupied }

// Capacity returns the fixed cell count.
func (t *Table) Capacity() uint32 { return t.mask + 1 }

// Cell returns the point at index i and whether the cell is occupied.
func (t *Table) Cell(i uint32) (Point, bool) {
	i &= t.mask
	return t.cells[i], t.used[i>>6]&(1<<(i&63)) != 0
}

// Stats returns the counters accumulated since the last Flush.
func (t *Table) Stats() Stats {
	return Stats{
		Calls:      t.calls,
		Inserted:   t.inserted,
		Pairs:      t.pairs,
		Discarded:  t.discarded,
		Duplicates: t.duplicates,
		Occupied:   t.occupied,
		Capacity:   t.mask + 1,
	}
}
