// Package primitive defines the vocabulary shared by every distributed
// primitive: the requested consistency level, persistence mode and
// replication mode, the retry tuning that is handed to the replication
// protocol, and the module's error type.
//
// Key Components:
//
//   - Requirement: The immutable (consistency, persistence, replication) tuple
//     supplied when a primitive is built.
//
//   - RetryTuning: Recovery strategy, retry count, retry delay and backup count.
//     These values are not interpreted by protocol selection, they are copied
//     into the selected protocol descriptor.
//
//   - Type: A primitive type name with its default Requirement.
//
//   - Error: A typed error with a RetCode. Configuration errors are raised
//     synchronously and are never retried.
//
// The zero value of every enum is deliberately invalid, so a Requirement that
// was never filled in is rejected instead of silently mapped to a default.
package primitive
