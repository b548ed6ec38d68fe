package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dPrim/lib/primitive"
	"github.com/ValentinKolb/dPrim/lib/protocol"
	"github.com/lni/dragonboat/v4/config"
)

// NodeConfig holds the parameters of a process hosting primitives.
type NodeConfig struct {
	// Requested primitive contract
	Requirement primitive.Requirement
	Tuning      primitive.RetryTuning
	Policy      protocol.Policy

	// Dragonboat parameters (used when the primitive resolves to raft)
	ShardID            uint64
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	// Logging configuration
	LogLevel string
}

// Options converts the configuration into protocol options for primitive type t.
// Unset (zero) requirement fields keep the defaults of t.
func (c *NodeConfig) Options(t primitive.Type) protocol.Options {
	opts := []protocol.Option{
		protocol.WithRecovery(c.Tuning.Recovery),
		protocol.WithMaxRetries(c.Tuning.MaxRetries),
		protocol.WithRetryDelay(c.Tuning.RetryDelay),
		protocol.WithBackups(c.Tuning.Backups),
		protocol.WithPolicy(c.Policy),
	}
	if c.Requirement.Consistency != 0 {
		opts = append(opts, protocol.WithConsistency(c.Requirement.Consistency))
	}
	if c.Requirement.Persistence != 0 {
		opts = append(opts, protocol.WithPersistence(c.Requirement.Persistence))
	}
	if c.Requirement.Replication != 0 {
		opts = append(opts, protocol.WithReplication(c.Requirement.Replication))
	}
	return protocol.NewOptions(t, opts...)
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *NodeConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// String returns a formatted string representation of the configuration
func (c *NodeConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Primitive")
	addField("Consistency", c.Requirement.Consistency.String())
	addField("Persistence", c.Requirement.Persistence.String())
	addField("Replication", c.Requirement.Replication.String())

	addSection("Protocol Tuning")
	addField("Recovery", c.Tuning.Recovery.String())
	addField("Max Retries", strconv.Itoa(c.Tuning.MaxRetries))
	addField("Retry Delay", c.Tuning.RetryDelay.String())
	addField("Backups", strconv.Itoa(c.Tuning.Backups))
	addField("Min Timeout", c.Policy.MinTimeout.String())
	addField("Max Timeout", c.Policy.MaxTimeout.String())

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	if c.Requirement.Persistence == primitive.PersistencePersistent {
		addSection("Node Identity")
		addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField("Node ID", strconv.FormatUint(c.ReplicaID, 10))
		addField("Shard ID", strconv.FormatUint(c.ShardID, 10))

		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))
		addField("Data Directory", c.DataDir)

		sb.WriteString("  Initial Cluster Members:\n")

		// Sort keys for consistent output
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("    Node %d: %s\n", k, c.ClusterMembers[k]))
		}
	}
	return sb.String()
}
