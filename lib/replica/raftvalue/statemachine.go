package raftvalue

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dPrim/lib/primitive"
	"github.com/ValentinKolb/dPrim/lib/replica/raftvalue/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/puzpuzpuz/xsync/v3"
)

// Result data of a CompareAndSet entry
var (
	casApplied = []byte{1}
	casRefused = []byte{0}
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// RegisterStateMachine is a dragonboat state machine holding byte registers.
// An empty register and a missing register are the same thing.
type RegisterStateMachine struct {
	replicaID uint64
	shardID   uint64
	registers *xsync.MapOf[string, []byte]
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host
func CreateStateMachineFactory() func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &RegisterStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			registers: xsync.NewMapOf[string, []byte](),
		}
	}
}

// Lookup handles read-only queries.
func (fsm *RegisterStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, primitive.NewError(primitive.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	switch q.Type {
	case internal.QueryTGet:
		val, ok := fsm.registers.Load(q.Key)
		return internal.QueryResult{Value: val, Ok: ok}, nil
	case internal.QueryTSize:
		return fsm.registers.Size(), nil
	default:
		return nil, primitive.NewError(primitive.RetCInternalError, fmt.Sprintf("unknown Query operation: %s", q.Type))
	}
}

// Update applies committed log entries in order.
// A CompareAndSet entry reports casApplied or casRefused in Result.Data.
func (fsm *RegisterStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()

	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = failed("empty command ignored")
			continue
		}

		cmd := internal.Command{}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = failed(fmt.Sprintf("failed to deserialize command: %v", err))
			continue
		}

		switch cmd.Type {
		case internal.CommandTSet:
			fsm.store(cmd.Key, cmd.Value)
			entries[idx].Result = sm.Result{Value: uint64(primitive.RetCSuccess)}
		case internal.CommandTDelete:
			fsm.registers.Delete(cmd.Key)
			entries[idx].Result = sm.Result{Value: uint64(primitive.RetCSuccess)}
		case internal.CommandTCompareAndSet:
			data := casRefused
			current, _ := fsm.registers.Load(cmd.Key)
			if bytes.Equal(current, cmd.Expected) {
				fsm.store(cmd.Key, cmd.Value)
				data = casApplied
			}
			entries[idx].Result = sm.Result{Value: uint64(primitive.RetCSuccess), Data: data}
		default:
			entries[idx].Result = failed(fmt.Sprintf("unknown Command operation: %s", cmd.Type))
		}
	}

	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("state machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

func (fsm *RegisterStateMachine) store(key string, value []byte) {
	if len(value) == 0 {
		fsm.registers.Delete(key)
		return
	}
	fsm.registers.Store(key, value)
}

func failed(msg string) sm.Result {
	return sm.Result{Value: uint64(primitive.RetCInternalError), Data: []byte(msg)}
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

type snapshotEntry struct {
	key   string
	value []byte
}

// PrepareSnapshot copies the registers. dragonboat does not run Update concurrently
// with PrepareSnapshot, so the copy is a consistent point in the log.
func (fsm *RegisterStateMachine) PrepareSnapshot() (interface{}, error) {
	entries := make([]snapshotEntry, 0, fsm.registers.Size())
	fsm.registers.Range(func(key string, value []byte) bool {
		entries = append(entries, snapshotEntry{key: key, value: value})
		return true
	})
	return entries, nil
}

// SaveSnapshot writes the prepared copy as:
// 8 bytes entry count, then per entry 4 bytes key length, key, 4 bytes value length, value.
func (fsm *RegisterStateMachine) SaveSnapshot(ctx interface{}, w io.Writer, _ sm.ISnapshotFileCollection, done <-chan struct{}) error {
	entries, ok := ctx.([]snapshotEntry)
	if !ok {
		return fmt.Errorf("invalid snapshot context: %T", ctx)
	}

	var header [8]byte
	binary.BigEndian.PutUint64(header[:], uint64(len(entries)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	var lenBuf [4]byte
	for _, e := range entries {
		select {
		case <-done:
			return sm.ErrSnapshotStopped
		default:
		}
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(e.key)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := io.WriteString(w, e.key); err != nil {
			return err
		}
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(e.value)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write(e.value); err != nil {
			return err
		}
	}
	return nil
}

// RecoverFromSnapshot replaces all registers with the snapshot content.
func (fsm *RegisterStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, done <-chan struct{}) error {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	count := binary.BigEndian.Uint64(header[:])

	registers := xsync.NewMapOf[string, []byte]()
	for i := uint64(0); i < count; i++ {
		select {
		case <-done:
			return sm.ErrSnapshotStopped
		default:
		}
		key, err := readChunk(r)
		if err != nil {
			return fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		value, err := readChunk(r)
		if err != nil {
			return fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		registers.Store(string(key), value)
	}

	fsm.registers = registers
	log.Infof("recovered %d registers from snapshot (shard %d, replica %d)", count, fsm.shardID, fsm.replicaID)
	return nil
}

func readChunk(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	buf := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close performs any necessary cleanup.
func (fsm *RegisterStateMachine) Close() error {
	fsm.registers.Clear()
	return nil
}
