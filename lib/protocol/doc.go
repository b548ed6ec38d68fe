// Package protocol selects and configures the replication protocol a
// distributed primitive runs on.
//
// Two protocol families exist:
//
//   - Raft (RaftDescriptor): leader based consensus with a single totally
//     ordered log. Used for every PERSISTENT primitive, since only consensus
//     keeps the data across a primary failure.
//
//   - Multi-primary (MultiPrimaryDescriptor): primary/backup replication
//     without a persistent log. Used for EPHEMERAL primitives.
//
// Selection:
//
//	Selector.Select is a pure function of the Requirement, the RetryTuning and
//	the selector's Policy. It evaluates consistency first, then persistence:
//
//	| consistency  | persistence | result                                   |
//	|--------------|-------------|------------------------------------------|
//	| LINEARIZABLE | PERSISTENT  | raft, linearizable-lease reads, leader   |
//	| LINEARIZABLE | EPHEMERAL   | multi-primary, linearizable              |
//	| SEQUENTIAL   | PERSISTENT  | raft, sequential reads, followers        |
//	| SEQUENTIAL   | EPHEMERAL   | multi-primary, sequential                |
//	| EVENTUAL     | PERSISTENT  | raft, sequential reads, followers        |
//	| EVENTUAL     | EPHEMERAL   | multi-primary, sequential                |
//
//	EVENTUAL has no Raft read mode of its own and is served with the
//	SEQUENTIAL settings. Malformed enum values and negative tuning are
//	rejected with a configuration error.
//
// Builders:
//
//	Options bundles a primitive Type's default requirement with caller
//	overrides. An explicit protocol set with WithProtocol always wins over
//	selection.
//
// Dragonboat:
//
//	RaftDescriptor.ToDragonboatConfig derives a dragonboat config.Config from
//	the descriptor's timeout bounds.
package protocol
