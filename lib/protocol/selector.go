package protocol

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dPrim/lib/primitive"
)

// Policy holds the fixed bounds every Raft descriptor carries. They are
// policy, not caller tuning: the trade-off between failure detection latency
// and spurious leader changes is made once per deployment.
type Policy struct {
	MinTimeout time.Duration
	MaxTimeout time.Duration
}

// DefaultPolicy returns the production bounds (5s..30s).
func DefaultPolicy() Policy {
	return Policy{
		MinTimeout: 5 * time.Second,
		MaxTimeout: 30 * time.Second,
	}
}

func (p Policy) validate() error {
	if p.MinTimeout <= 0 {
		return primitive.NewError(primitive.RetCInvalidConfiguration,
			fmt.Sprintf("minimum timeout must be positive, got %s", p.MinTimeout))
	}
	if p.MaxTimeout < p.MinTimeout {
		return primitive.NewError(primitive.RetCInvalidConfiguration,
			fmt.Sprintf("maximum timeout %s is below minimum timeout %s", p.MaxTimeout, p.MinTimeout))
	}
	return nil
}

// Selector maps a requirement onto a protocol descriptor. It holds nothing
// but its Policy and can be shared freely.
type Selector struct {
	policy Policy
}

// NewSelector creates a selector using the given policy.
func NewSelector(policy Policy) Selector {
	return Selector{policy: policy}
}

// Policy returns the policy the selector was created with.
func (s Selector) Policy() Policy {
	return s.policy
}

// Select resolves the requirement into a protocol descriptor:
//
//	LINEARIZABLE + PERSISTENT        -> raft, linearizable-lease reads, leader
//	LINEARIZABLE + EPHEMERAL         -> multi-primary, linearizable
//	SEQUENTIAL|EVENTUAL + PERSISTENT -> raft, sequential reads, followers
//	SEQUENTIAL|EVENTUAL + EPHEMERAL  -> multi-primary, sequential
//
// There is no eventually consistent Raft read mode, so EVENTUAL gets the
// SEQUENTIAL settings. Anything outside the declared enums is rejected with a
// configuration error.
func (s Selector) Select(req primitive.Requirement, tuning primitive.RetryTuning) (Descriptor, error) {
	if err := s.policy.validate(); err != nil {
		return nil, err
	}
	if err := validate(req, tuning); err != nil {
		return nil, err
	}

	switch req.Consistency {
	case primitive.ConsistencyLinearizable:
		switch req.Persistence {
		case primitive.PersistencePersistent:
			return s.newRaft(primitive.ConsistencyLinearizable, tuning), nil
		case primitive.PersistenceEphemeral:
			return newMultiPrimary(primitive.ConsistencyLinearizable, req.Replication, tuning), nil
		}
	case primitive.ConsistencySequential, primitive.ConsistencyEventual:
		switch req.Persistence {
		case primitive.PersistencePersistent:
			return s.newRaft(primitive.ConsistencySequential, tuning), nil
		case primitive.PersistenceEphemeral:
			return newMultiPrimary(primitive.ConsistencySequential, req.Replication, tuning), nil
		}
	}

	// validate accepts only the six combinations handled above
	return nil, primitive.NewError(primitive.RetCInternalError,
		fmt.Sprintf("no protocol for requirement %s", req))
}

// Select resolves a requirement with DefaultPolicy.
func Select(req primitive.Requirement, tuning primitive.RetryTuning) (Descriptor, error) {
	return NewSelector(DefaultPolicy()).Select(req, tuning)
}

func (s Selector) newRaft(readConsistency primitive.Consistency, tuning primitive.RetryTuning) RaftDescriptor {
	d := RaftDescriptor{
		MinTimeout:            s.policy.MinTimeout,
		MaxTimeout:            s.policy.MaxTimeout,
		ReadConsistency:       ReadSequential,
		CommunicationStrategy: CommunicationFollowers,
		Recovery:              tuning.Recovery,
		MaxRetries:            tuning.MaxRetries,
		RetryDelay:            tuning.RetryDelay,
	}
	if readConsistency == primitive.ConsistencyLinearizable {
		d.ReadConsistency = ReadLinearizableLease
		d.CommunicationStrategy = CommunicationLeader
	}
	return d
}

func newMultiPrimary(consistency primitive.Consistency, replication primitive.Replication, tuning primitive.RetryTuning) MultiPrimaryDescriptor {
	return MultiPrimaryDescriptor{
		Consistency: consistency,
		Replication: replication,
		Recovery:    tuning.Recovery,
		Backups:     tuning.Backups,
		MaxRetries:  tuning.MaxRetries,
		RetryDelay:  tuning.RetryDelay,
	}
}

// validate rejects malformed enum values and negative tuning.
func validate(req primitive.Requirement, tuning primitive.RetryTuning) error {
	invalid := func(format string, args ...any) error {
		return primitive.NewError(primitive.RetCInvalidConfiguration, fmt.Sprintf(format, args...))
	}

	switch {
	case !req.Consistency.Valid():
		return invalid("unsupported consistency %s", req.Consistency)
	case !req.Persistence.Valid():
		return invalid("unsupported persistence %s", req.Persistence)
	case !req.Replication.Valid():
		return invalid("unsupported replication %s", req.Replication)
	case !tuning.Recovery.Valid():
		return invalid("unsupported recovery strategy %s", tuning.Recovery)
	case tuning.MaxRetries < 0:
		return invalid("max retries must not be negative, got %d", tuning.MaxRetries)
	case tuning.RetryDelay < 0:
		return invalid("retry delay must not be negative, got %s", tuning.RetryDelay)
	case tuning.Backups < 0:
		return invalid("backup count must not be negative, got %d", tuning.Backups)
	}
	return nil
}
