package collide

import (
	"math/rand"
	"testing"
)

func BenchmarkInsertSparse(b *testing.B) {
	tb := New(1<<22, 16, 1, 1)
	r := rand.New(rand.NewSource(1))
	pts := make([]Point, 1<<16)
	for i := range pts {
		pts[i] = Point{Trial: uint32(i), Tail: r.Uint32()}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i&(1<<20-1) == 0 {
			tb.Flush()
		}
		tb.Insert(pts[i&(len(pts)-1)])
	}
}

func BenchmarkInsertSaturated(b *testing.B) {
	tb := New(1<<12, 16, 1, 1)
	r := rand.New(rand.NewSource(2))
	for tb.Occupied() < tb.Capacity()-1 {
		if _, hit := tb.Insert(Point{Trial: r.Uint32(), Tail: r.Uint32()}); hit {
			continue
		}
		if tb.Stats().Discarded > 1<<16 {
			break
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tb.Insert(Point{Trial: uint32(i), Tail: uint32(i) * 2654435761})
	}
}

func BenchmarkFlush(b *testing.B) {
	tb := New(1<<22, 16, 1, 1)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		tb.Flush()
	}
}
