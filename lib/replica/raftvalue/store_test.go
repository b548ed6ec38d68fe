package raftvalue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dPrim/lib/cas"
	"github.com/ValentinKolb/dPrim/lib/primitive"
	"github.com/ValentinKolb/dPrim/lib/protocol"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNoDeadline = errors.New("deadline not set")

// fakeNodeHost applies proposals directly to a state machine.
// Errors queued in failures are returned (and consumed) before touching the state machine.
type fakeNodeHost struct {
	mu       sync.Mutex
	fsm      *RegisterStateMachine
	index    uint64
	failures []error

	proposals  int
	syncReads  int
	staleReads int
}

func newFakeNodeHost() *fakeNodeHost {
	return &fakeNodeHost{fsm: newTestStateMachine()}
}

func (f *fakeNodeHost) fail(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, errs...)
}

func (f *fakeNodeHost) nextFailure() error {
	if len(f.failures) == 0 {
		return nil
	}
	err := f.failures[0]
	f.failures = f.failures[1:]
	return err
}

func (f *fakeNodeHost) SyncPropose(ctx context.Context, _ *client.Session, cmd []byte) (sm.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proposals++
	if _, ok := ctx.Deadline(); !ok {
		return sm.Result{}, errNoDeadline
	}
	if err := f.nextFailure(); err != nil {
		return sm.Result{}, err
	}
	f.index++
	out, err := f.fsm.Update([]sm.Entry{{Index: f.index, Cmd: cmd}})
	if err != nil {
		return sm.Result{}, err
	}
	return out[0].Result, nil
}

func (f *fakeNodeHost) SyncRead(_ context.Context, _ uint64, query interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncReads++
	if err := f.nextFailure(); err != nil {
		return nil, err
	}
	return f.fsm.Lookup(query)
}

func (f *fakeNodeHost) StaleRead(_ uint64, query interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleReads++
	if err := f.nextFailure(); err != nil {
		return nil, err
	}
	return f.fsm.Lookup(query)
}

func (f *fakeNodeHost) GetNoOPSession(shardID uint64) *client.Session {
	return &client.Session{ShardID: shardID}
}

func testDescriptor() protocol.RaftDescriptor {
	return protocol.RaftDescriptor{
		MinTimeout:            time.Second,
		MaxTimeout:            5 * time.Second,
		ReadConsistency:       protocol.ReadLinearizableLease,
		CommunicationStrategy: protocol.CommunicationLeader,
		Recovery:              primitive.RecoveryRecover,
		MaxRetries:            2,
		RetryDelay:            time.Millisecond,
	}
}

func TestStoreCompareAndSet(t *testing.T) {
	nh := newFakeNodeHost()
	s := NewStore(nh, 1, testDescriptor())
	h := s.Value("counter")
	ctx := context.Background()

	v, err := h.Get(ctx)
	require.NoError(t, err)
	require.Empty(t, v)

	ok, err := h.CompareAndSet(ctx, nil, []byte{1})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.CompareAndSet(ctx, nil, []byte{2})
	require.NoError(t, err)
	require.False(t, ok)

	v, err = h.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, v)
	require.Equal(t, 2, nh.syncReads)
	require.Zero(t, nh.staleReads)
}

func TestStoreStaleReads(t *testing.T) {
	nh := newFakeNodeHost()
	desc := testDescriptor()
	desc.ReadConsistency = protocol.ReadSequential
	desc.CommunicationStrategy = protocol.CommunicationFollowers
	s := NewStore(nh, 1, desc)

	require.NoError(t, s.Set(context.Background(), "k", []byte("v")))
	v, err := s.Value("k").Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
	require.Equal(t, 1, nh.staleReads)
	require.Zero(t, nh.syncReads)
}

func TestStoreRetriesTransientErrors(t *testing.T) {
	nh := newFakeNodeHost()
	s := NewStore(nh, 1, testDescriptor())

	nh.fail(dragonboat.ErrSystemBusy, dragonboat.ErrShardNotReady)
	ok, err := s.Value("k").CompareAndSet(context.Background(), nil, []byte{1})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, nh.proposals)
}

func TestStoreGivesUpAfterMaxRetries(t *testing.T) {
	nh := newFakeNodeHost()
	s := NewStore(nh, 1, testDescriptor())

	nh.fail(dragonboat.ErrSystemBusy, dragonboat.ErrSystemBusy, dragonboat.ErrSystemBusy)
	_, err := s.Value("k").Get(context.Background())
	require.ErrorIs(t, err, dragonboat.ErrSystemBusy)
	require.Equal(t, 3, nh.syncReads)
	require.False(t, s.Closed())
}

func TestStoreDoesNotRetryTimeout(t *testing.T) {
	nh := newFakeNodeHost()
	s := NewStore(nh, 1, testDescriptor())

	nh.fail(dragonboat.ErrTimeout)
	_, err := s.Value("k").CompareAndSet(context.Background(), nil, []byte{1})
	require.ErrorIs(t, err, dragonboat.ErrTimeout)
	require.Equal(t, 1, nh.proposals)
}

func TestStoreRecoveryStrategies(t *testing.T) {
	t.Run("recover keeps the store open", func(t *testing.T) {
		nh := newFakeNodeHost()
		s := NewStore(nh, 1, testDescriptor())

		nh.fail(dragonboat.ErrShardNotFound)
		_, err := s.Value("k").Get(context.Background())
		require.ErrorIs(t, err, dragonboat.ErrShardNotFound)
		require.False(t, s.Closed())

		_, err = s.Value("k").Get(context.Background())
		require.NoError(t, err)
	})

	t.Run("close closes the store", func(t *testing.T) {
		nh := newFakeNodeHost()
		desc := testDescriptor()
		desc.Recovery = primitive.RecoveryClose
		s := NewStore(nh, 1, desc)

		nh.fail(dragonboat.ErrShardClosed)
		_, err := s.Value("k").Get(context.Background())
		require.ErrorIs(t, err, dragonboat.ErrShardClosed)
		require.True(t, s.Closed())

		_, err = s.Value("k").Get(context.Background())
		require.True(t, primitive.IsClosed(err))
		require.Equal(t, 1, nh.syncReads)
	})
}

func TestStoreCloseRejectsCalls(t *testing.T) {
	s := NewStore(newFakeNodeHost(), 1, testDescriptor())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.Set(context.Background(), "k", []byte{1})
	require.True(t, primitive.IsClosed(err))
}

func TestStoreDefaultsTimeouts(t *testing.T) {
	s := NewStore(newFakeNodeHost(), 1, protocol.RaftDescriptor{})
	require.Equal(t, protocol.DefaultPolicy().MinTimeout, s.desc.MinTimeout)
	require.Equal(t, protocol.DefaultPolicy().MaxTimeout, s.desc.MaxTimeout)

	// proposals always carry a deadline
	require.NoError(t, s.Set(context.Background(), "k", []byte{1}))
}

func TestStoreWithLong(t *testing.T) {
	nh := newFakeNodeHost()
	s := NewStore(nh, 1, testDescriptor())
	l := cas.NewLong(cas.NewTyped[int64](s.Value("hits"), cas.Int64Codec{}))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.IncrementAndGet(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v, err := l.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(20), v)

	n, err := s.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, s.Delete(ctx, "hits"))
	v, err = l.Get(ctx)
	require.NoError(t, err)
	require.Zero(t, v)
}
