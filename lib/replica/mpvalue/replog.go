package mpvalue

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// update is a committed register write waiting to be applied to the backups.
type update struct {
	key   string
	value []byte
}

type logNode struct {
	value *update
	next  atomic.Pointer[logNode]
}

// replicationLog is an unbounded lock-free multi-producer single-consumer queue of updates.
// A single consumer goroutine hands every update to apply in push order.
// Order across concurrent producers is the order in which their appends land, so
// callers that need commit order must push while holding the lock that orders commits.
type replicationLog struct {
	head   atomic.Pointer[logNode]
	tail   atomic.Pointer[logNode]
	closed atomic.Bool

	pushed  atomic.Uint64
	applied atomic.Uint64

	apply    func(*update)
	consumer sync.WaitGroup

	// wakes the consumer on push and Flush callers on apply
	mu   sync.Mutex
	cond *sync.Cond
}

func newReplicationLog(apply func(*update)) *replicationLog {
	sentinel := &logNode{}

	l := &replicationLog{apply: apply}
	l.cond = sync.NewCond(&l.mu)
	l.head.Store(sentinel)
	l.tail.Store(sentinel)

	l.consumer.Add(1)
	go l.consume()

	return l
}

// push appends u. Returns false if the log is closed.
func (l *replicationLog) push(u *update) bool {
	if u == nil || l.closed.Load() {
		return false
	}

	n := &logNode{value: u}
	l.pushed.Add(1)

	var backoff uint8
	for {
		tail := l.tail.Load()
		next := tail.next.Load()
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// may fail if another producer already advanced the tail
				l.tail.CompareAndSwap(tail, n)
				l.broadcast()
				return true
			}
		} else {
			l.tail.CompareAndSwap(tail, next)
		}

		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

func (l *replicationLog) broadcast() {
	l.mu.Lock()
	l.cond.Broadcast()
	l.mu.Unlock()
}

func (l *replicationLog) consume() {
	defer l.consumer.Done()

	for {
		drained := false
		for {
			head := l.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			drained = true

			u := next.value
			l.head.Store(next)
			next.value = nil

			l.apply(u)
			l.applied.Add(1)
		}

		if drained {
			l.broadcast()
			continue
		}

		l.mu.Lock()
		if l.head.Load().next.Load() == nil {
			if l.closed.Load() {
				l.mu.Unlock()
				return
			}
			l.cond.Wait()
		}
		l.mu.Unlock()
	}
}

// flush blocks until every update pushed before the call has been applied.
func (l *replicationLog) flush() {
	target := l.pushed.Load()

	l.mu.Lock()
	defer l.mu.Unlock()
	for l.applied.Load() < target {
		l.cond.Wait()
	}
}

// pending returns the number of pushed but not yet applied updates.
func (l *replicationLog) pending() uint64 {
	return l.pushed.Load() - l.applied.Load()
}

// close stops accepting updates and waits until the consumer has applied the rest.
func (l *replicationLog) close() {
	if l.closed.Swap(true) {
		return
	}
	l.broadcast()
	l.consumer.Wait()
}
