// Package internal contains the wire format of the raft register state machine:
// the binary encoding of log entries (Command) and the in-memory lookup
// requests (Query) passed to SyncRead and StaleRead.
package internal
