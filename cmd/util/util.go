package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dPrim/lib/common"
	"github.com/ValentinKolb/dPrim/lib/primitive"
	"github.com/ValentinKolb/dPrim/lib/protocol"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// HashString maps a replica name like "node-1" to a numeric replica ID (FNV-1a).
func HashString(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	hash := uint64(offset64)
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}
	return hash
}

// InitConfig loads .env files and configures viper to read DPRIM_<FLAG> variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("dprim")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupPrimitiveFlags adds the requirement, tuning and timeout policy flags to a command
func SetupPrimitiveFlags(cmd *cobra.Command) {
	def := primitive.TypeAtomicLong.Defaults
	tuning := primitive.DefaultTuning()
	policy := protocol.DefaultPolicy()

	key := "consistency"
	cmd.PersistentFlags().String(key, def.Consistency.String(), WrapString("Required consistency (linearizable, sequential, eventual)"))

	key = "persistence"
	cmd.PersistentFlags().String(key, def.Persistence.String(), WrapString("Required persistence (ephemeral, persistent). Persistent primitives always use raft"))

	key = "replication"
	cmd.PersistentFlags().String(key, def.Replication.String(), WrapString("Replication mode for the multi-primary protocol (synchronous, asynchronous)"))

	key = "recovery"
	cmd.PersistentFlags().String(key, tuning.Recovery.String(), WrapString("What to do when the protocol loses its primary or shard (recover, close)"))

	key = "max-retries"
	cmd.PersistentFlags().Int(key, tuning.MaxRetries, WrapString("How often a request is retried while the protocol is unavailable"))

	key = "retry-delay"
	cmd.PersistentFlags().Duration(key, tuning.RetryDelay, WrapString("Delay between two retries"))

	key = "backups"
	cmd.PersistentFlags().Int(key, tuning.Backups, WrapString("Number of backups of the multi-primary protocol"))

	key = "min-timeout"
	cmd.PersistentFlags().Duration(key, policy.MinTimeout, WrapString("Lower bound of the raft election timeout, also used as per request timeout"))

	key = "max-timeout"
	cmd.PersistentFlags().Duration(key, policy.MaxTimeout, WrapString("Upper bound of the raft election timeout, also used as overall request deadline"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// SetupRaftFlags adds the Dragonboat node flags to a command
func SetupRaftFlags(cmd *cobra.Command) {
	key := "shard"
	cmd.PersistentFlags().Uint64(key, 100, WrapString("ID of the raft shard holding the registers"))

	key = "rtt-millisecond"
	cmd.PersistentFlags().Uint64(key, 100, WrapString("RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. The election RTT is derived from it and the min timeout"))

	key = "snapshot-entries"
	cmd.PersistentFlags().Uint64(key, 10, WrapString("SnapshotEntries defines how often the state machine should be snapshotted automatically, in applied Raft log entries. 0 disables automatic snapshotting"))

	key = "compaction-overhead"
	cmd.PersistentFlags().Uint64(key, 5, WrapString("CompactionOverhead defines the number of log entries to keep after compaction"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, "data", WrapString("DataDir is the directory used for the raft log and snapshots"))

	key = "replica-id"
	cmd.PersistentFlags().String(key, "node-1", WrapString("ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	cmd.PersistentFlags().String(key, "node-1=localhost:63001", WrapString("ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))
}

// GetNodeConfig reads the node configuration from viper.
// Raft fields are only read if withRaft is set (see SetupRaftFlags).
func GetNodeConfig(withRaft bool) (*common.NodeConfig, error) {
	conf := &common.NodeConfig{
		LogLevel: viper.GetString("log-level"),
	}

	var err error
	if conf.Requirement.Consistency, err = primitive.ParseConsistency(viper.GetString("consistency")); err != nil {
		return nil, err
	}
	if conf.Requirement.Persistence, err = primitive.ParsePersistence(viper.GetString("persistence")); err != nil {
		return nil, err
	}
	if conf.Requirement.Replication, err = primitive.ParseReplication(viper.GetString("replication")); err != nil {
		return nil, err
	}
	if conf.Tuning.Recovery, err = primitive.ParseRecovery(viper.GetString("recovery")); err != nil {
		return nil, err
	}
	conf.Tuning.MaxRetries = viper.GetInt("max-retries")
	conf.Tuning.RetryDelay = viper.GetDuration("retry-delay")
	conf.Tuning.Backups = viper.GetInt("backups")
	conf.Policy = protocol.Policy{
		MinTimeout: viper.GetDuration("min-timeout"),
		MaxTimeout: viper.GetDuration("max-timeout"),
	}

	if !withRaft {
		return conf, nil
	}

	conf.ShardID = viper.GetUint64("shard")
	conf.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	conf.SnapshotEntries = viper.GetUint64("snapshot-entries")
	conf.CompactionOverhead = viper.GetUint64("compaction-overhead")
	conf.DataDir = viper.GetString("data-dir")
	conf.ReplicaID = HashString(viper.GetString("replica-id"))

	members, err := ParseClusterMembers(viper.GetString("cluster-members"))
	if err != nil {
		return nil, err
	}
	if _, ok := members[conf.ReplicaID]; !ok {
		return nil, fmt.Errorf("no address found for replica %q in cluster members", viper.GetString("replica-id"))
	}
	conf.ClusterMembers = members

	return conf, nil
}

// ParseClusterMembers parses 'node-1=host:port,node-2=host:port' into replica IDs and addresses
func ParseClusterMembers(s string) (map[uint64]string, error) {
	members := make(map[uint64]string)
	for _, member := range strings.Split(s, ",") {
		parts := strings.Split(member, "=")
		if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
		}
		members[HashString(strings.TrimSpace(parts[0]))] = strings.TrimSpace(parts[1])
	}
	return members, nil
}
