package replicatest

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dPrim/lib/cas"
)

// Backend is the register surface shared by all replica backends.
type Backend interface {
	Value(key string) cas.Handle[[]byte]
	Close() error
}

// BackendFactory creates a new, empty backend instance
type BackendFactory func(t testing.TB) Backend

// RunBackendTests runs the register test suite against a backend implementation.
func RunBackendTests(t *testing.T, name string, factory BackendFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("EmptyRegister", func(t *testing.T) {
			testEmptyRegister(t, factory(t))
		})

		t.Run("CompareAndSet", func(t *testing.T) {
			testCompareAndSet(t, factory(t))
		})

		t.Run("EmptyValueResets", func(t *testing.T) {
			testEmptyValueResets(t, factory(t))
		})

		t.Run("GetReturnsCopy", func(t *testing.T) {
			testGetReturnsCopy(t, factory(t))
		})

		t.Run("IndependentKeys", func(t *testing.T) {
			testIndependentKeys(t, factory(t))
		})

		t.Run("SingleWinner", func(t *testing.T) {
			testSingleWinner(t, factory(t))
		})

		t.Run("ConcurrentLong", func(t *testing.T) {
			testConcurrentLong(t, factory(t))
		})

		t.Run("Linearizable", func(t *testing.T) {
			testLinearizable(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func mustGet(t *testing.T, h cas.Handle[[]byte]) []byte {
	t.Helper()
	v, err := h.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	return v
}

func mustCAS(t *testing.T, h cas.Handle[[]byte], expected, updated []byte) bool {
	t.Helper()
	ok, err := h.CompareAndSet(context.Background(), expected, updated)
	if err != nil {
		t.Fatalf("CompareAndSet failed: %v", err)
	}
	return ok
}

func testEmptyRegister(t *testing.T, b Backend) {
	defer b.Close()

	if v := mustGet(t, b.Value("never-written")); len(v) != 0 {
		t.Errorf("Expected empty register, got %v", v)
	}
}

func testCompareAndSet(t *testing.T, b Backend) {
	defer b.Close()
	h := b.Value("k")

	if !mustCAS(t, h, nil, []byte("v1")) {
		t.Fatalf("Expected CompareAndSet from empty to succeed")
	}
	if mustCAS(t, h, nil, []byte("v2")) {
		t.Errorf("Expected CompareAndSet with stale expected value to be refused")
	}
	if v := mustGet(t, h); !bytes.Equal(v, []byte("v1")) {
		t.Errorf("Expected refused CompareAndSet to leave v1, got %s", v)
	}
	if !mustCAS(t, h, []byte("v1"), []byte("v2")) {
		t.Errorf("Expected CompareAndSet v1 -> v2 to succeed")
	}
	if v := mustGet(t, h); !bytes.Equal(v, []byte("v2")) {
		t.Errorf("Expected v2, got %s", v)
	}
}

func testEmptyValueResets(t *testing.T, b Backend) {
	defer b.Close()
	h := b.Value("k")

	mustCAS(t, h, nil, []byte{1})
	if !mustCAS(t, h, []byte{1}, nil) {
		t.Fatalf("Expected CompareAndSet to empty to succeed")
	}
	if v := mustGet(t, h); len(v) != 0 {
		t.Errorf("Expected empty register after reset, got %v", v)
	}
	if !mustCAS(t, h, []byte{}, []byte{2}) {
		t.Errorf("Expected empty and nil expected values to be equal")
	}
}

func testGetReturnsCopy(t *testing.T, b Backend) {
	defer b.Close()
	h := b.Value("k")

	mustCAS(t, h, nil, []byte("value"))
	v := mustGet(t, h)
	v[0] = 'X'

	if again := mustGet(t, h); !bytes.Equal(again, []byte("value")) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}
}

func testIndependentKeys(t *testing.T, b Backend) {
	defer b.Close()

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key-%d", i)
		mustCAS(t, b.Value(key), nil, []byte(key))
	}
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key-%d", i)
		if v := mustGet(t, b.Value(key)); !bytes.Equal(v, []byte(key)) {
			t.Errorf("Expected %s, got %s", key, v)
		}
	}
}

func testSingleWinner(t *testing.T, b Backend) {
	defer b.Close()
	h := b.Value("race")

	const writers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := h.CompareAndSet(context.Background(), nil, []byte{byte(i + 1)})
			if err != nil {
				t.Errorf("CompareAndSet failed: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("Expected exactly one winner, got %d", wins.Load())
	}
}

func testConcurrentLong(t *testing.T, b Backend) {
	defer b.Close()
	l := cas.NewLong(cas.NewTyped[int64](b.Value("counter"), cas.Int64Codec{}))

	const goroutines, increments = 8, 25
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				if _, err := l.IncrementAndGet(context.Background()); err != nil {
					t.Errorf("IncrementAndGet failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	v, err := l.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != goroutines*increments {
		t.Errorf("Expected %d, got %d", goroutines*increments, v)
	}
}
