// Package raftvalue implements replicated registers on top of the Dragonboat
// RAFT library. Every register is a byte slice addressed by key; the package
// exposes each register as a cas.Handle[[]byte] so that the optimistic update
// loop in lib/cas can run against a raft shard.
//
// Architecture:
//
//   - RegisterStateMachine: A Dragonboat IConcurrentStateMachine holding the
//     registers in a lock-free xsync map. Log entries are binary encoded
//     commands (Set, CompareAndSet, Delete, see the internal package). A
//     CompareAndSet entry is evaluated when it is applied, so all replicas
//     agree on which of two racing proposals won. An empty register and a
//     missing register are indistinguishable.
//
//   - Store: Client side of a shard. Writes go through SyncPropose using a
//     no-op session. Reads use SyncRead (ReadIndex on the leader) unless the
//     protocol.RaftDescriptor asks for sequential reads from followers, in
//     which case StaleRead on the local replica is used.
//
// Timeouts and retries:
//
//   - Every call to the node host gets the descriptor's MinTimeout; the whole
//     operation including retries is bounded by MaxTimeout.
//
//   - ErrSystemBusy and ErrShardNotReady are retried up to MaxRetries times
//     with RetryDelay in between. A timed out proposal is not retried because
//     it may still be committed.
//
//   - ErrShardClosed, ErrShardNotFound and ErrClosed are returned unchanged.
//     With the CLOSE recovery strategy they also close the Store, and every
//     later call fails with a primitive.RetCClosed error.
//
// Snapshots:
//
//	PrepareSnapshot copies the registers, SaveSnapshot streams the copy as
//	length prefixed key/value pairs and RecoverFromSnapshot replaces the
//	registers with the stream content.
//
// Usage:
//
//	nh, err := raftvalue.StartShard(ctx, nodeConfig, desc)
//	if err != nil { ... }
//	defer nh.Close()
//
//	store := raftvalue.NewStore(nh, nodeConfig.ShardID, desc)
//	counter := cas.NewLong(cas.NewTyped[int64](store.Value("counter"), cas.Int64Codec{}))
//	v, err := counter.IncrementAndGet(ctx)
package raftvalue
