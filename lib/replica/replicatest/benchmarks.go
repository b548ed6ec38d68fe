package replicatest

import (
	"context"
	"fmt"
	"testing"

	"github.com/ValentinKolb/dPrim/lib/cas"
)

// RunBackendBenchmarks runs the register benchmarks against a backend implementation.
func RunBackendBenchmarks(b *testing.B, factory BackendFactory) {
	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory(b))
	})

	b.Run("CompareAndSet", func(b *testing.B) {
		benchmarkCompareAndSet(b, factory(b))
	})

	b.Run("IncrementContended", func(b *testing.B) {
		benchmarkIncrement(b, factory(b), 1)
	})

	b.Run("IncrementSpread", func(b *testing.B) {
		benchmarkIncrement(b, factory(b), 100)
	})
}

func benchmarkGet(b *testing.B, backend Backend) {
	b.Cleanup(func() {
		backend.Close()
	})

	h := backend.Value("bench-get")
	if _, err := h.CompareAndSet(context.Background(), nil, []byte("value")); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = h.Get(context.Background())
		}
	})
}

// every iteration writes a fresh key, so no CompareAndSet is refused
func benchmarkCompareAndSet(b *testing.B, backend Backend) {
	b.Cleanup(func() {
		backend.Close()
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = backend.Value(fmt.Sprintf("bench-cas-%d", i)).CompareAndSet(context.Background(), nil, []byte{1})
	}
}

// keys controls contention: 1 means every goroutine races on the same register
func benchmarkIncrement(b *testing.B, backend Backend, keys int) {
	b.Cleanup(func() {
		backend.Close()
	})

	longs := make([]*cas.Long, keys)
	for i := range longs {
		longs[i] = cas.NewLong(cas.NewTyped[int64](backend.Value(fmt.Sprintf("bench-inc-%d", i)), cas.Int64Codec{}))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = longs[counter%keys].IncrementAndGet(context.Background())
			counter++
		}
	})
}
