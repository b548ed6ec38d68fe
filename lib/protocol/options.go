package protocol

import (
	"time"

	"github.com/ValentinKolb/dPrim/lib/primitive"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("protocol")

// Options collects everything a primitive builder knows about the protocol it
// should run on. Requirement fields start out as the primitive type's
// defaults and are overridden by the With... options.
type Options struct {
	primitiveType primitive.Type
	requirement   primitive.Requirement
	tuning        primitive.RetryTuning
	policy        Policy
	explicit      Descriptor
}

// Option configures Options.
type Option func(*Options)

// WithConsistency overrides the primitive type's default consistency.
func WithConsistency(c primitive.Consistency) Option {
	return func(o *Options) {
		o.requirement.Consistency = c
	}
}

// WithPersistence overrides the primitive type's default persistence.
func WithPersistence(p primitive.Persistence) Option {
	return func(o *Options) {
		o.requirement.Persistence = p
	}
}

// WithReplication overrides the primitive type's default replication.
func WithReplication(r primitive.Replication) Option {
	return func(o *Options) {
		o.requirement.Replication = r
	}
}

// WithRecovery sets the recovery strategy handed to the protocol.
func WithRecovery(r primitive.Recovery) Option {
	return func(o *Options) {
		o.tuning.Recovery = r
	}
}

// WithMaxRetries sets the protocol level retry count.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.tuning.MaxRetries = n
	}
}

// WithRetryDelay sets the delay between protocol level retries.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) {
		o.tuning.RetryDelay = d
	}
}

// WithBackups sets the number of backups of the multi-primary protocol.
func WithBackups(n int) Option {
	return func(o *Options) {
		o.tuning.Backups = n
	}
}

// WithPolicy replaces the Raft timeout bounds.
func WithPolicy(p Policy) Option {
	return func(o *Options) {
		o.policy = p
	}
}

// WithProtocol pins an explicit protocol. It takes precedence over the
// requirement: Protocol returns it unchanged.
func WithProtocol(d Descriptor) Option {
	return func(o *Options) {
		o.explicit = d
	}
}

// NewOptions creates the options for a primitive of type t.
func NewOptions(t primitive.Type, opts ...Option) Options {
	o := Options{
		primitiveType: t,
		requirement:   t.Defaults,
		tuning:        primitive.DefaultTuning(),
		policy:        DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Requirement returns the effective requirement.
func (o Options) Requirement() primitive.Requirement {
	return o.requirement
}

// Tuning returns the effective retry tuning.
func (o Options) Tuning() primitive.RetryTuning {
	return o.tuning
}

// Protocol returns the protocol the primitive runs on: the explicit one if
// set, otherwise the result of selecting on the requirement.
func (o Options) Protocol() (Descriptor, error) {
	if o.explicit != nil {
		log.Debugf("%s: using explicit protocol %s", o.primitiveType.Name, o.explicit)
		return o.explicit, nil
	}

	d, err := NewSelector(o.policy).Select(o.requirement, o.tuning)
	if err != nil {
		log.Errorf("%s: rejected requirement %s: %v", o.primitiveType.Name, o.requirement, err)
		return nil, err
	}
	log.Debugf("%s: selected %s for %s", o.primitiveType.Name, d, o.requirement)
	return d, nil
}
