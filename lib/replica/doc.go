// Package replica turns a protocol.Descriptor into a concrete register
// backend: raft descriptors open a raftvalue.Store on a Dragonboat shard,
// multi-primary descriptors an in-process mpvalue.Group.
package replica
