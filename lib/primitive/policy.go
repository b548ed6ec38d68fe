package primitive

import (
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Consistency
// --------------------------------------------------------------------------

// Consistency is the consistency level requested for a primitive.
type Consistency uint8

const (
	ConsistencyLinearizable Consistency = iota + 1 // Operations take effect in real-time order.
	ConsistencySequential                          // All callers observe one total order.
	ConsistencyEventual                            // Replicas converge eventually.
)

func (c Consistency) String() string {
	switch c {
	case ConsistencyLinearizable:
		return "linearizable"
	case ConsistencySequential:
		return "sequential"
	case ConsistencyEventual:
		return "eventual"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// Valid reports whether c is one of the declared consistency levels.
func (c Consistency) Valid() bool {
	return c >= ConsistencyLinearizable && c <= ConsistencyEventual
}

// ParseConsistency converts a (case-insensitive) name to a Consistency.
func ParseConsistency(s string) (Consistency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linearizable":
		return ConsistencyLinearizable, nil
	case "sequential":
		return ConsistencySequential, nil
	case "eventual":
		return ConsistencyEventual, nil
	default:
		return 0, NewError(RetCInvalidConfiguration,
			fmt.Sprintf("invalid consistency %q (expected one of: linearizable, sequential, eventual)", s))
	}
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// Persistence controls whether a primitive's state must survive failures.
type Persistence uint8

const (
	PersistenceEphemeral  Persistence = iota + 1 // State lives in memory only.
	PersistencePersistent                        // State is durable across primary failure.
)

func (p Persistence) String() string {
	switch p {
	case PersistenceEphemeral:
		return "ephemeral"
	case PersistencePersistent:
		return "persistent"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}

// Valid reports whether p is one of the declared persistence modes.
func (p Persistence) Valid() bool {
	return p == PersistenceEphemeral || p == PersistencePersistent
}

// ParsePersistence converts a (case-insensitive) name to a Persistence.
func ParsePersistence(s string) (Persistence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ephemeral":
		return PersistenceEphemeral, nil
	case "persistent":
		return PersistencePersistent, nil
	default:
		return 0, NewError(RetCInvalidConfiguration,
			fmt.Sprintf("invalid persistence %q (expected one of: ephemeral, persistent)", s))
	}
}

// --------------------------------------------------------------------------
// Replication
// --------------------------------------------------------------------------

// Replication controls whether writes wait for backups before being acknowledged.
type Replication uint8

const (
	ReplicationSynchronous  Replication = iota + 1 // Backups are updated before the ack.
	ReplicationAsynchronous                        // Backups are updated after the ack.
)

func (r Replication) String() string {
	switch r {
	case ReplicationSynchronous:
		return "synchronous"
	case ReplicationAsynchronous:
		return "asynchronous"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the declared replication modes.
func (r Replication) Valid() bool {
	return r == ReplicationSynchronous || r == ReplicationAsynchronous
}

// ParseReplication converts a (case-insensitive) name to a Replication.
func ParseReplication(s string) (Replication, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "synchronous", "sync":
		return ReplicationSynchronous, nil
	case "asynchronous", "async":
		return ReplicationAsynchronous, nil
	default:
		return 0, NewError(RetCInvalidConfiguration,
			fmt.Sprintf("invalid replication %q (expected one of: synchronous, asynchronous)", s))
	}
}

// --------------------------------------------------------------------------
// Recovery
// --------------------------------------------------------------------------

// Recovery is the strategy a protocol applies when the primitive's session or
// primary is lost.
type Recovery uint8

const (
	RecoveryRecover Recovery = iota + 1 // Re-establish and keep serving.
	RecoveryClose                       // Close the primitive; further calls fail.
)

func (r Recovery) String() string {
	switch r {
	case RecoveryRecover:
		return "recover"
	case RecoveryClose:
		return "close"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the declared recovery strategies.
func (r Recovery) Valid() bool {
	return r == RecoveryRecover || r == RecoveryClose
}

// ParseRecovery converts a (case-insensitive) name to a Recovery.
func ParseRecovery(s string) (Recovery, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "recover":
		return RecoveryRecover, nil
	case "close":
		return RecoveryClose, nil
	default:
		return 0, NewError(RetCInvalidConfiguration,
			fmt.Sprintf("invalid recovery strategy %q (expected one of: recover, close)", s))
	}
}

// --------------------------------------------------------------------------
// Requirement and tuning
// --------------------------------------------------------------------------

// Requirement is the consistency contract requested when a primitive is built.
// It is a plain value and is never mutated after construction.
type Requirement struct {
	Consistency Consistency
	Persistence Persistence
	Replication Replication
}

func (r Requirement) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Consistency, r.Persistence, r.Replication)
}

// RetryTuning holds the protocol settings that are passed through unchanged
// by protocol selection.
type RetryTuning struct {
	Recovery   Recovery
	MaxRetries int
	RetryDelay time.Duration
	Backups    int
}

// DefaultTuning returns the tuning used when a builder sets nothing explicitly.
func DefaultTuning() RetryTuning {
	return RetryTuning{
		Recovery:   RecoveryRecover,
		MaxRetries: 0,
		RetryDelay: 100 * time.Millisecond,
		Backups:    1,
	}
}

// --------------------------------------------------------------------------
// Primitive types
// --------------------------------------------------------------------------

// Type names a kind of distributed primitive together with the requirement it
// uses when the caller does not ask for anything else.
type Type struct {
	Name     string
	Defaults Requirement
}

var (
	// TypeMultimap is a consistent multimap. Multimaps favour availability by
	// default and therefore start out sequential and ephemeral.
	TypeMultimap = Type{
		Name: "multimap",
		Defaults: Requirement{
			Consistency: ConsistencySequential,
			Persistence: PersistenceEphemeral,
			Replication: ReplicationSynchronous,
		},
	}

	// TypeAtomicLong is a distributed 64 bit counter.
	TypeAtomicLong = Type{
		Name: "atomic-long",
		Defaults: Requirement{
			Consistency: ConsistencyLinearizable,
			Persistence: PersistencePersistent,
			Replication: ReplicationSynchronous,
		},
	}
)
