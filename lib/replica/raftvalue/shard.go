package raftvalue

import (
	"context"
	"time"

	"github.com/ValentinKolb/dPrim/lib/common"
	"github.com/ValentinKolb/dPrim/lib/protocol"
	"github.com/lni/dragonboat/v4"
)

// StartShard creates a node host from cfg, starts the register shard on it and
// waits until the shard has a leader or ctx is done.
func StartShard(ctx context.Context, cfg *common.NodeConfig, desc protocol.RaftDescriptor) (*dragonboat.NodeHost, error) {
	nh, err := dragonboat.NewNodeHost(cfg.ToNodeHostConfig())
	if err != nil {
		return nil, err
	}

	shardCfg := desc.ToDragonboatConfig(cfg.ShardID, cfg.ReplicaID, cfg.RTTMillisecond, cfg.SnapshotEntries, cfg.CompactionOverhead)
	if err := nh.StartConcurrentReplica(cfg.ClusterMembers, false, CreateStateMachineFactory(), shardCfg); err != nil {
		nh.Close()
		return nil, err
	}

	if err := WaitReady(ctx, nh, cfg.ShardID); err != nil {
		nh.Close()
		return nil, err
	}
	log.Infof("shard %d ready on replica %d", cfg.ShardID, cfg.ReplicaID)
	return nh, nil
}

// WaitReady polls the node host until shardID has an elected leader.
func WaitReady(ctx context.Context, nh *dragonboat.NodeHost, shardID uint64) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, _, ok, err := nh.GetLeaderID(shardID); err == nil && ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
