package protocol

import (
	"time"

	"github.com/lni/dragonboat/v4/config"
)

// Dragonboat counts election and heartbeat timeouts in ticks of RTTMillisecond.
// minElectionRTT keeps the ratio the RAFT paper recommends for a one tick
// heartbeat.
const (
	heartbeatRTT   = 1
	minElectionRTT = 10
)

// ElectionRTT converts the descriptor's timeout bounds into dragonboat ticks.
// The election timeout is MinTimeout, capped at MaxTimeout.
func (d RaftDescriptor) ElectionRTT(rttMillisecond uint64) uint64 {
	if rttMillisecond == 0 {
		return minElectionRTT
	}
	rtt := time.Duration(rttMillisecond) * time.Millisecond

	timeout := d.MinTimeout
	if d.MaxTimeout > 0 && timeout > d.MaxTimeout {
		timeout = d.MaxTimeout
	}

	ticks := uint64(timeout / rtt)
	if ticks < minElectionRTT {
		return minElectionRTT
	}
	return ticks
}

// ToDragonboatConfig converts the descriptor to a dragonboat replica config.
func (d RaftDescriptor) ToDragonboatConfig(shardID, replicaID, rttMillisecond, snapshotEntries, compactionOverhead uint64) config.Config {
	return config.Config{
		ReplicaID:          replicaID,
		ShardID:            shardID,
		ElectionRTT:        d.ElectionRTT(rttMillisecond),
		HeartbeatRTT:       heartbeatRTT,
		CheckQuorum:        true,
		SnapshotEntries:    snapshotEntries,
		CompactionOverhead: compactionOverhead,
		MaxInMemLogSize:    0,
	}
}
