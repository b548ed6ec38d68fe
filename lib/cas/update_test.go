package cas

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ValentinKolb/dPrim/lib/primitive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plusOne(v int64) int64 { return v + 1 }

func TestUpdateFirstAttemptCommits(t *testing.T) {
	h := newFakeHandle(10)

	got, err := Update[int64](context.Background(), h, func(v int64) int64 { return v * 3 })
	require.NoError(t, err)
	require.Equal(t, int64(30), got)
	require.Equal(t, int64(30), h.current())
	require.Equal(t, int64(1), h.gets.Load())
	require.Equal(t, int64(1), h.sets.Load())
}

func TestUpdateRereadsAfterConflict(t *testing.T) {
	h := newFakeHandle(10)
	h.beforeCAS = func(call int64, f *fakeHandle) (*bool, error) {
		if call == 1 {
			// a concurrent writer commits between our read and our proposal
			f.set(20)
		}
		return nil, nil
	}

	got, err := Update[int64](context.Background(), h, plusOne)
	require.NoError(t, err)
	require.Equal(t, int64(21), got, "must transform the second read, not the first")
	require.Equal(t, int64(2), h.gets.Load())
	require.Equal(t, int64(2), h.sets.Load())
}

func TestUpdateGetErrorIsNotRetried(t *testing.T) {
	timeout := errors.New("request timed out")
	h := newFakeHandle(10)
	h.beforeGet = func(int64) error { return timeout }

	_, err := Update[int64](context.Background(), h, plusOne)
	require.ErrorIs(t, err, timeout)
	require.Same(t, timeout, err)
	require.Equal(t, int64(1), h.gets.Load())
	require.Equal(t, int64(0), h.sets.Load())
}

func TestUpdateCompareAndSetErrorIsNotRetried(t *testing.T) {
	leaderLost := errors.New("leader lost")
	h := newFakeHandle(10)
	h.beforeCAS = func(int64, *fakeHandle) (*bool, error) { return nil, leaderLost }

	_, err := Update[int64](context.Background(), h, plusOne)
	require.Same(t, leaderLost, err)
	require.Equal(t, int64(1), h.gets.Load())
	require.Equal(t, int64(1), h.sets.Load())
	require.Equal(t, int64(10), h.current())
}

func TestUpdateWithHintSkipsRead(t *testing.T) {
	h := newFakeHandle(5)

	got, err := UpdateWithHint[int64](context.Background(), h, 5, plusOne)
	require.NoError(t, err)
	require.Equal(t, int64(6), got)
	require.Equal(t, int64(0), h.gets.Load())
}

func TestUpdateWithStaleHintReads(t *testing.T) {
	h := newFakeHandle(5)

	got, err := UpdateWithHint[int64](context.Background(), h, 1, plusOne)
	require.NoError(t, err)
	require.Equal(t, int64(6), got)
	require.Equal(t, int64(1), h.gets.Load())
	require.Equal(t, int64(2), h.sets.Load())
}

func TestUpdateMaxAttempts(t *testing.T) {
	refused := false
	h := newFakeHandle(0)
	h.beforeCAS = func(int64, *fakeHandle) (*bool, error) { return &refused, nil }

	_, err := Update[int64](context.Background(), h, plusOne, WithMaxAttempts(3))
	require.Error(t, err)

	var pe *primitive.Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, primitive.RetCTooManyConflicts, pe.Code)
	require.Equal(t, int64(3), h.sets.Load())
	require.Equal(t, int64(3), h.gets.Load())
}

func TestUpdateStopsRetryingWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refused := false
	h := newFakeHandle(0)
	h.beforeCAS = func(int64, *fakeHandle) (*bool, error) {
		cancel()
		return &refused, nil
	}

	_, err := Update[int64](ctx, h, plusOne)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int64(1), h.sets.Load())
}

func TestUpdateKeepsCommitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newFakeHandle(7)
	h.beforeCAS = func(int64, *fakeHandle) (*bool, error) {
		cancel()
		return nil, nil
	}

	got, err := Update[int64](ctx, h, plusOne)
	require.NoError(t, err)
	require.Equal(t, int64(8), got)
	require.Equal(t, int64(8), h.current())
}

func TestConcurrentUpdatesAreLinearizable(t *testing.T) {
	const n = 64
	h := newFakeHandle(100)

	var wg sync.WaitGroup
	results := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Update[int64](context.Background(), h, plusOne)
			assert.NoError(t, err)
			results <- v
		}()
	}
	wg.Wait()
	close(results)

	require.Equal(t, int64(100+n), h.current())

	// every committed value is unique: no two updates applied to the same prior value
	seen := make(map[int64]bool)
	for v := range results {
		require.False(t, seen[v], "value %d committed twice", v)
		seen[v] = true
	}
	require.Len(t, seen, n)
}

func TestUpdateMetrics(t *testing.T) {
	m := NewMetrics("test")
	h := newFakeHandle(0)
	h.beforeCAS = func(call int64, f *fakeHandle) (*bool, error) {
		if call == 1 {
			f.set(1)
		}
		return nil, nil
	}

	_, err := Update[int64](context.Background(), h, plusOne, WithMetrics(m))
	require.NoError(t, err)

	h.beforeGet = func(int64) error { return errors.New("partition") }
	_, err = Update[int64](context.Background(), h, plusOne, WithMetrics(m))
	require.Error(t, err)

	require.Equal(t, uint64(1), m.Updates())
	require.Equal(t, uint64(1), m.Conflicts())
	require.Equal(t, uint64(1), m.Failures())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "READ", stateRead.String())
	require.Equal(t, "PROPOSE", statePropose.String())
	require.Equal(t, "COMMITTED", stateCommitted.String())
	require.Equal(t, "RETRY", stateRetry.String())
	require.Equal(t, "FAILED", stateFailed.String())
}
