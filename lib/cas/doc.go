// Package cas implements atomic read-modify-write operations on top of a
// replicated value that only offers Get and CompareAndSet.
//
// Update Loop:
//
//	Update runs an explicit loop over five states instead of chaining
//	callbacks, so heavy contention costs iterations, not stack:
//
//	READ      -> use the last known value if there is one, otherwise Get
//	PROPOSE   -> updated := transform(observed); CompareAndSet(observed, updated)
//	COMMITTED -> return updated
//	RETRY     -> forget the observed value, back to READ
//	FAILED    -> return the error
//
//	The last known value is only a hint. It is dropped as soon as a proposal
//	is refused, so the next attempt always works on a fresh read. Retrying on a
//	stale value would be refused forever.
//
// Conflicts vs. Failures:
//
//	A refused CompareAndSet is a conflict: another writer committed first.
//	Conflicts are retried and never surface. An error from Get or
//	CompareAndSet is an infrastructure failure (timeout, leader loss,
//	partition) and is returned to the caller as is, without a retry. Backoff
//	for infrastructure failures belongs to the replication protocol.
//
// Termination:
//
//	By default the loop retries until it commits. WithMaxAttempts adds a
//	ceiling; hitting it returns an error with RetCTooManyConflicts and leaves
//	the value untouched. Cancelling the context stops further attempts, a
//	proposal that already committed stays committed.
//
// Derived Operations:
//
//	Long expresses every counter operation (AddAndGet, GetAndAdd,
//	IncrementAndGet, ...) as a transform for Update. The get-first variants
//	compute the previous value from the committed one.
//
// Concurrency:
//
//	Concurrent updates on the same handle each run their own loop. Nothing
//	is shared between them; the replication layer's CompareAndSet decides
//	which proposal wins.
package cas
