package mpvalue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dPrim/lib/cas"
	"github.com/ValentinKolb/dPrim/lib/primitive"
	"github.com/ValentinKolb/dPrim/lib/protocol"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("mpvalue")

// ErrUnavailable is returned when no live replica can serve a request within the retry budget.
var ErrUnavailable = errors.New("mpvalue: no live replica available")

type replica struct {
	registers *xsync.MapOf[string, []byte]
	failed    atomic.Bool
}

func (r *replica) store(key string, value []byte) {
	if len(value) == 0 {
		r.registers.Delete(key)
		return
	}
	r.registers.Store(key, value)
}

// Group is an in-process multi-primary replica group: one primary that orders
// all writes plus a number of backups.
type Group struct {
	desc     protocol.MultiPrimaryDescriptor
	replicas []*replica
	primary  atomic.Int32
	replog   *replicationLog // nil for synchronous replication

	mu     sync.Mutex
	closed bool
}

// NewGroup creates a group with one primary and desc.Backups backups.
func NewGroup(desc protocol.MultiPrimaryDescriptor) *Group {
	g := &Group{desc: desc}

	g.replicas = make([]*replica, 1+max(desc.Backups, 0))
	for i := range g.replicas {
		g.replicas[i] = &replica{registers: xsync.NewMapOf[string, []byte]()}
	}

	if desc.Replication == primitive.ReplicationAsynchronous {
		g.replog = newReplicationLog(g.applyToBackups)
	}

	log.Debugf("created group with %d replicas (%s)", len(g.replicas), desc)
	return g
}

// Value returns the register stored under key as a cas handle.
func (g *Group) Value(key string) cas.Handle[[]byte] {
	return &register{group: g, key: key}
}

// Primary returns the index of the current primary.
func (g *Group) Primary() int {
	return int(g.primary.Load())
}

// Size returns the number of replicas in the group, including failed ones.
func (g *Group) Size() int {
	return len(g.replicas)
}

// Fail marks replica i as failed. A failed replica neither serves requests nor receives updates.
func (g *Group) Fail(i int) error {
	if i < 0 || i >= len(g.replicas) {
		return fmt.Errorf("mpvalue: replica %d out of range [0, %d)", i, len(g.replicas))
	}
	g.replicas[i].failed.Store(true)
	log.Infof("replica %d failed", i)
	return nil
}

// Restore brings replica i back. It first catches up with the primary, or with
// the backup that will be promoted next if the primary is down, so that it never
// rejoins with fewer writes than the replica that orders them.
func (g *Group) Restore(i int) error {
	if i < 0 || i >= len(g.replicas) {
		return fmt.Errorf("mpvalue: replica %d out of range [0, %d)", i, len(g.replicas))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.replicas[i]
	if !r.failed.Load() {
		return nil
	}

	if g.replog != nil {
		g.replog.flush()
	}

	if src := g.upToDateLocked(); src != nil {
		registers := xsync.NewMapOf[string, []byte]()
		src.registers.Range(func(key string, value []byte) bool {
			registers.Store(key, value)
			return true
		})
		r.registers = registers
	} else {
		log.Warningf("replica %d restored without a live replica to catch up from", i)
	}
	r.failed.Store(false)
	log.Infof("replica %d restored", i)
	return nil
}

// Flush waits until all asynchronously replicated updates reached the live backups.
func (g *Group) Flush() {
	if g.replog != nil {
		g.replog.flush()
	}
}

// Peek reads key directly from replica i, ignoring its failure state.
func (g *Group) Peek(i int, key string) ([]byte, bool) {
	return g.replicas[i].registers.Load(key)
}

// Close closes the group. Pending asynchronous updates are applied first.
func (g *Group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closeLocked()
	return nil
}

func (g *Group) closeLocked() {
	if g.closed {
		return
	}
	g.closed = true
	if g.replog != nil {
		g.replog.close()
	}
	log.Infof("group closed")
}

// --------------------------------------------------------------------------
// Primary handling
// --------------------------------------------------------------------------

// primaryLocked returns the live primary, applying the recovery strategy if it failed.
// The caller must hold g.mu.
func (g *Group) primaryLocked() (*replica, error) {
	if g.closed {
		return nil, primitive.NewError(primitive.RetCClosed, "replica group is closed")
	}

	current := int(g.primary.Load())
	if p := g.replicas[current]; !p.failed.Load() {
		return p, nil
	}

	if g.desc.Recovery == primitive.RecoveryClose {
		log.Warningf("primary %d failed, closing group", current)
		g.closeLocked()
		return nil, primitive.NewError(primitive.RetCClosed, fmt.Sprintf("primary %d failed", current))
	}

	if next := g.nextLiveLocked(current); next >= 0 {
		// backups must hold every acknowledged write before one of them takes over
		if g.replog != nil {
			g.replog.flush()
		}
		g.primary.Store(int32(next))
		log.Infof("primary %d failed, promoted replica %d", current, next)
		return g.replicas[next], nil
	}
	return nil, ErrUnavailable
}

// nextLiveLocked returns the first live replica after current in promotion order, or -1.
func (g *Group) nextLiveLocked(current int) int {
	for step := 1; step < len(g.replicas); step++ {
		i := (current + step) % len(g.replicas)
		if !g.replicas[i].failed.Load() {
			return i
		}
	}
	return -1
}

// upToDateLocked returns a live replica holding every acknowledged write: the
// primary if it is live, otherwise the backup that would be promoted. Live
// backups are complete because writes reach all of them (after a log flush).
// Returns nil if no replica is live.
func (g *Group) upToDateLocked() *replica {
	current := int(g.primary.Load())
	if p := g.replicas[current]; !p.failed.Load() {
		return p
	}
	if next := g.nextLiveLocked(current); next >= 0 {
		return g.replicas[next]
	}
	return nil
}

// acquire locks the group and returns the primary. On success the caller must unlock g.mu.
// ErrUnavailable is retried MaxRetries times, waiting RetryDelay without holding the lock.
func (g *Group) acquire(ctx context.Context) (*replica, error) {
	for attempt := 0; ; attempt++ {
		g.mu.Lock()
		p, err := g.primaryLocked()
		if err == nil {
			return p, nil
		}
		g.mu.Unlock()

		if !errors.Is(err, ErrUnavailable) || attempt >= g.desc.MaxRetries {
			return nil, err
		}

		log.Infof("no live replica, retrying (%d/%d)...", attempt+1, g.desc.MaxRetries)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.desc.RetryDelay):
		}
	}
}

func (g *Group) applyToBackups(u *update) {
	primary := int(g.primary.Load())
	for i, r := range g.replicas {
		if i == primary || r.failed.Load() {
			continue
		}
		r.store(u.key, u.value)
	}
}

// --------------------------------------------------------------------------
// Register handle
// --------------------------------------------------------------------------

type register struct {
	group *Group
	key   string
}

// Get reads the register at the primary. Linearizable reads are ordered with
// writes through the group lock; sequential reads load the map directly.
func (r *register) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := r.group.acquire(ctx)
	if err != nil {
		return nil, err
	}

	if r.group.desc.Consistency == primitive.ConsistencyLinearizable {
		defer r.group.mu.Unlock()
		v, _ := p.registers.Load(r.key)
		return bytes.Clone(v), nil
	}

	r.group.mu.Unlock()
	v, _ := p.registers.Load(r.key)
	return bytes.Clone(v), nil
}

// CompareAndSet is atomic at the primary. A successful write is replicated to
// the live backups before returning (synchronous) or queued in commit order (asynchronous).
func (r *register) CompareAndSet(ctx context.Context, expected, updated []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	g := r.group
	p, err := g.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer g.mu.Unlock()

	current, _ := p.registers.Load(r.key)
	if !bytes.Equal(current, expected) {
		return false, nil
	}

	value := bytes.Clone(updated)
	p.store(r.key, value)

	u := &update{key: r.key, value: value}
	if g.replog != nil {
		g.replog.push(u)
	} else {
		g.applyToBackups(u)
	}
	return true, nil
}
