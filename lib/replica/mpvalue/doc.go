// Package mpvalue implements replicated registers for the multi-primary
// protocol family inside a single process. A Group holds one primary and a
// configurable number of backups, each storing its registers in an xsync map.
//
// Writes: CompareAndSet is evaluated at the primary under the group lock, so
// exactly one of several racing writers with the same expected value wins.
// With SYNCHRONOUS replication the new value is written to every live backup
// before the call returns. With ASYNCHRONOUS replication it is pushed onto a
// lock-free replication log whose consumer applies updates in commit order;
// Flush waits until the log is drained.
//
// Reads: LINEARIZABLE reads hold the group lock. SEQUENTIAL reads only take
// the lock to locate the primary and then load the register directly.
//
// Failures: Fail and Restore simulate replica crashes. When the primary has
// failed, RECOVER promotes the next live replica (after draining the
// replication log), CLOSE closes the group and every later call returns a
// primitive.RetCClosed error. If no replica is live the request is retried
// MaxRetries times, RetryDelay apart, before ErrUnavailable is returned.
package mpvalue
