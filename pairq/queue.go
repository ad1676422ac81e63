// ============================================================================
// UNBOUNDED FIFO PAIR QUEUE
// ============================================================================
//
// Growable power-of-two ring used to hand collision pairs from the sorter
// loop to result consumers.
//
// Core capabilities:
//   - Push never fails: a full ring doubles in place (amortised O(1))
//   - TryPop is non-blocking O(1) and reports emptiness instead of waiting
//   - Drain empties the queue in O(1) for explicit job-boundary resets
//
// Safety model:
//   - Not synchronised: the owner serialises Push/TryPop/Drain
//   - Elements are copied in and out; popped slots are zeroed

package pairq

// Queue is a FIFO of T backed by a power-of-two ring.
type Queue[T any] struct {
	head uint64 // next slot to pop
	tail uint64 // next slot to push
	mask uint64
	buf  []T
}

// New creates a queue with the given initial capacity.
//
// Panics:
//   - size <= 0 or not a power of two
func New[T any](size int) *Queue[T] {
	if size <= 0 || size&(size-1) != 0 {
		panic("pairq: size must be >0 and power of two")
	}
	return &Queue[T]{
		mask: uint64(size - 1),
		buf:  make([]T, size),
	}
}

// Push appends v at the tail, growing the ring when it is full.
func (q *Queue[T]) Push(v T) {
	if q.tail-q.head == uint64(len(q.buf)) {
		q.grow()
	}
	q.buf[q.tail&q.mask] = v
	q.tail++
}

// TryPop removes and returns the oldest element.
// The boolean is false when the queue is empty.
func (q *Queue[T]) TryPop() (T, bool) {
	var zero T
	if q.head == q.tail {
		return zero, false
	}
	s := &q.buf[q.head&q.mask]
	v := *s
	*s = zero
	q.head++
	return v, true
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int { return int(q.tail - q.head) }

// Cap returns the current ring capacity.
func (q *Queue[T]) Cap() int { return len(q.buf) }

// Drain drops every queued element and returns how many were dropped.
// Storage is kept for reuse.
func (q *Queue[T]) Drain() int {
	n := q.Len()
	clear(q.buf)
	q.head, q.tail = 0, 0
	return n
}

// grow doubles the ring and unrolls the live window to the front.
func (q *Queue[T]) grow() {
	n := len(q.buf)
	buf := make([]T, n<<1)
	h := int(q.head & q.mask)
	c := copy(buf, q.buf[h:])
	copy(buf[c:], q.buf[:h])
	q.buf = buf
	q.mask = uint64(len(buf) - 1)
	q.tail -= q.head
	q.head = 0
}
