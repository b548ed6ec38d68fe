package raftvalue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dPrim/lib/cas"
	"github.com/ValentinKolb/dPrim/lib/primitive"
	"github.com/ValentinKolb/dPrim/lib/protocol"
	"github.com/ValentinKolb/dPrim/lib/replica/raftvalue/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

var log = logger.GetLogger("raftvalue")

// NodeHost is the part of *dragonboat.NodeHost used by Store.
type NodeHost interface {
	SyncPropose(ctx context.Context, session *client.Session, cmd []byte) (sm.Result, error)
	SyncRead(ctx context.Context, shardID uint64, query interface{}) (interface{}, error)
	StaleRead(shardID uint64, query interface{}) (interface{}, error)
	GetNoOPSession(shardID uint64) *client.Session
}

var _ NodeHost = (*dragonboat.NodeHost)(nil)

// Store gives access to the registers of one raft shard.
// It is safe for concurrent use.
type Store struct {
	nh      NodeHost
	shardID uint64
	cs      *client.Session
	desc    protocol.RaftDescriptor
	closed  atomic.Bool
}

// NewStore creates a store for shardID that reads and retries as desc describes.
// Missing timeouts fall back to protocol.DefaultPolicy.
func NewStore(nh NodeHost, shardID uint64, desc protocol.RaftDescriptor) *Store {
	def := protocol.DefaultPolicy()
	if desc.MinTimeout <= 0 {
		desc.MinTimeout = def.MinTimeout
	}
	if desc.MaxTimeout < desc.MinTimeout {
		desc.MaxTimeout = max(def.MaxTimeout, desc.MinTimeout)
	}
	return &Store{
		nh:      nh,
		shardID: shardID,
		cs:      nh.GetNoOPSession(shardID),
		desc:    desc,
	}
}

// Value returns the register stored under key as a cas handle.
func (s *Store) Value(key string) cas.Handle[[]byte] {
	return &register{store: s, key: key}
}

// Set writes value unconditionally. An empty value resets the register.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.write(ctx, internal.Command{Type: internal.CommandTSet, Key: key, Value: value})
	return err
}

// Delete resets the register stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.write(ctx, internal.Command{Type: internal.CommandTDelete, Key: key})
	return err
}

// Size returns the number of non-empty registers in the shard.
func (s *Store) Size(ctx context.Context) (int, error) {
	return read[int](ctx, s, internal.Query{Type: internal.QueryTSize})
}

// Close marks the store closed. The shard itself keeps running on the node host.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	log.Infof("closed store for shard %d", s.shardID)
	return nil
}

// Closed reports whether the store was closed by Close or by the CLOSE recovery strategy.
func (s *Store) Closed() bool {
	return s.closed.Load()
}

// --------------------------------------------------------------------------
// Register handle
// --------------------------------------------------------------------------

type register struct {
	store *Store
	key   string
}

func (r *register) Get(ctx context.Context) ([]byte, error) {
	res, err := read[internal.QueryResult](ctx, r.store, internal.Query{Type: internal.QueryTGet, Key: r.key})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(res.Value), nil
}

func (r *register) CompareAndSet(ctx context.Context, expected, updated []byte) (bool, error) {
	res, err := r.store.write(ctx, internal.Command{
		Type:     internal.CommandTCompareAndSet,
		Key:      r.key,
		Expected: expected,
		Value:    updated,
	})
	if err != nil {
		return false, err
	}
	return bytes.Equal(res.Data, casApplied), nil
}

// --------------------------------------------------------------------------
// Internal write and read operations
// --------------------------------------------------------------------------

// transient errors are rejected before the request enters the log, so retrying cannot apply it twice.
func transient(err error) bool {
	return errors.Is(err, dragonboat.ErrSystemBusy) || errors.Is(err, dragonboat.ErrShardNotReady)
}

// fatal errors mean the shard is gone for this node host.
func fatal(err error) bool {
	return errors.Is(err, dragonboat.ErrShardClosed) ||
		errors.Is(err, dragonboat.ErrShardNotFound) ||
		errors.Is(err, dragonboat.ErrClosed)
}

// retry runs op with a per-call timeout of MinTimeout inside an overall deadline of MaxTimeout.
// Transient errors are retried up to MaxRetries times, waiting RetryDelay in between.
// Any other error is returned as is; a fatal one closes the store under the CLOSE strategy.
func (s *Store) retry(ctx context.Context, name string, op func(ctx context.Context) error) error {
	if s.closed.Load() {
		return primitive.NewError(primitive.RetCClosed, fmt.Sprintf("store for shard %d is closed", s.shardID))
	}

	ctx, cancel := context.WithTimeout(ctx, s.desc.MaxTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		callCtx, callCancel := context.WithTimeout(ctx, s.desc.MinTimeout)
		err := op(callCtx)
		callCancel()

		if err == nil {
			return nil
		}

		if transient(err) && attempt < s.desc.MaxRetries {
			log.Infof("%s: %v, retrying (%d/%d)...", name, err, attempt+1, s.desc.MaxRetries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.desc.RetryDelay):
			}
			continue
		}

		if fatal(err) && s.desc.Recovery == primitive.RecoveryClose && !s.closed.Swap(true) {
			log.Warningf("%s: shard %d unavailable (%v), closing store", name, s.shardID, err)
		}
		return err
	}
}

// write proposes cmd and waits for it to be applied.
func (s *Store) write(ctx context.Context, cmd internal.Command) (sm.Result, error) {
	var res sm.Result
	err := s.retry(ctx, "SyncPropose", func(ctx context.Context) error {
		var err error
		res, err = s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		return err
	})
	if err != nil {
		return sm.Result{}, err
	}
	if res.Value != uint64(primitive.RetCSuccess) {
		return sm.Result{}, primitive.NewError(primitive.RetCode(res.Value), string(res.Data))
	}
	return res, nil
}

// read queries the state machine and converts the response into R.
// Stale reads are used when the descriptor allows follower reads.
func read[R any](ctx context.Context, s *Store, q internal.Query) (R, error) {
	var zero R
	var res interface{}

	stale := s.desc.StaleReads()
	name := "SyncRead"
	if stale {
		name = "StaleRead"
	}

	err := s.retry(ctx, name, func(ctx context.Context) error {
		var err error
		if stale {
			res, err = s.nh.StaleRead(s.shardID, q)
		} else {
			res, err = s.nh.SyncRead(ctx, s.shardID, q)
		}
		return err
	})
	if err != nil {
		return zero, err
	}

	casted, ok := res.(R)
	if !ok {
		return zero, primitive.NewError(primitive.RetCInternalError,
			fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
	}
	return casted, nil
}
