package protocol

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dPrim/lib/primitive"
)

// --------------------------------------------------------------------------
// Protocol families
// --------------------------------------------------------------------------

// Family identifies which replication protocol a Descriptor configures.
type Family uint8

const (
	FamilyRaft         Family = iota + 1 // Leader based consensus, durable.
	FamilyMultiPrimary                   // Primary/backup quorum replication, ephemeral.
)

func (f Family) String() string {
	switch f {
	case FamilyRaft:
		return "raft"
	case FamilyMultiPrimary:
		return "multi-primary"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(f))
	}
}

// ReadConsistency is the Raft read mode.
type ReadConsistency uint8

const (
	ReadLinearizableLease ReadConsistency = iota + 1 // Reads are certified by the leader.
	ReadSequential                                   // Reads may be served from any up to date replica.
)

func (r ReadConsistency) String() string {
	switch r {
	case ReadLinearizableLease:
		return "linearizable-lease"
	case ReadSequential:
		return "sequential"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(r))
	}
}

// CommunicationStrategy selects which Raft members a client talks to.
type CommunicationStrategy uint8

const (
	CommunicationLeader    CommunicationStrategy = iota + 1 // All operations go to the leader.
	CommunicationFollowers                                  // Reads are spread over the followers.
)

func (c CommunicationStrategy) String() string {
	switch c {
	case CommunicationLeader:
		return "leader"
	case CommunicationFollowers:
		return "followers"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// --------------------------------------------------------------------------
// Descriptor (tagged union)
// --------------------------------------------------------------------------

// Descriptor is a fully configured replication protocol. It is implemented by
// RaftDescriptor and MultiPrimaryDescriptor only; a type switch over those two
// is exhaustive.
type Descriptor interface {
	// Family returns the protocol family of the active variant.
	Family() Family
	// Tuning returns the retry tuning carried by the descriptor.
	Tuning() primitive.RetryTuning
	String() string

	descriptor()
}

// RaftDescriptor configures the consensus protocol.
type RaftDescriptor struct {
	MinTimeout            time.Duration
	MaxTimeout            time.Duration
	ReadConsistency       ReadConsistency
	CommunicationStrategy CommunicationStrategy
	Recovery              primitive.Recovery
	MaxRetries            int
	RetryDelay            time.Duration
}

func (RaftDescriptor) descriptor() {}

func (RaftDescriptor) Family() Family { return FamilyRaft }

func (d RaftDescriptor) Tuning() primitive.RetryTuning {
	return primitive.RetryTuning{
		Recovery:   d.Recovery,
		MaxRetries: d.MaxRetries,
		RetryDelay: d.RetryDelay,
	}
}

func (d RaftDescriptor) String() string {
	return fmt.Sprintf("raft{timeout=%s..%s read=%s comm=%s recovery=%s retries=%d delay=%s}",
		d.MinTimeout, d.MaxTimeout, d.ReadConsistency, d.CommunicationStrategy,
		d.Recovery, d.MaxRetries, d.RetryDelay)
}

// StaleReads reports whether reads may be answered from local, possibly
// lagging, replica state instead of being confirmed by the leader.
func (d RaftDescriptor) StaleReads() bool {
	return d.ReadConsistency == ReadSequential && d.CommunicationStrategy == CommunicationFollowers
}

// MultiPrimaryDescriptor configures the primary/backup protocol.
type MultiPrimaryDescriptor struct {
	Consistency primitive.Consistency
	Replication primitive.Replication
	Recovery    primitive.Recovery
	Backups     int
	MaxRetries  int
	RetryDelay  time.Duration
}

func (MultiPrimaryDescriptor) descriptor() {}

func (MultiPrimaryDescriptor) Family() Family { return FamilyMultiPrimary }

func (d MultiPrimaryDescriptor) Tuning() primitive.RetryTuning {
	return primitive.RetryTuning{
		Recovery:   d.Recovery,
		MaxRetries: d.MaxRetries,
		RetryDelay: d.RetryDelay,
		Backups:    d.Backups,
	}
}

func (d MultiPrimaryDescriptor) String() string {
	return fmt.Sprintf("multi-primary{consistency=%s replication=%s recovery=%s backups=%d retries=%d delay=%s}",
		d.Consistency, d.Replication, d.Recovery, d.Backups, d.MaxRetries, d.RetryDelay)
}

// Compile-time assertions
var (
	_ Descriptor = RaftDescriptor{}
	_ Descriptor = MultiPrimaryDescriptor{}
)
