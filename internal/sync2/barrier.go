package sync2

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Barrier is a single-use multi-party rendezvous. It must not be reused
// once Release has fired (by either an auto-release arrival or an explicit
// Release call); the cross-partition protocol allocates a new Barrier per
// use. The repartition fence instead keeps a fixed pair of Barriers alive
// across one repartition cycle via Arena.
type Barrier struct {
	ID          uuid.UUID
	target      int64
	count       atomic.Int64
	armed       chan struct{}
	armedOnce   sync.Once
	release     chan struct{}
	releaseOnce sync.Once
	autoRelease bool
}

// NewBarrier allocates a barrier for n participants. When autoRelease is
// true, the participant whose Arrive call reaches n also releases every
// waiter (the symmetric, no-external-controller case). When false, an
// external controller must call Release explicitly once it has observed
// WaitArmed (the scheduler-fenced case).
func NewBarrier(n int, autoRelease bool) *Barrier {
	return &Barrier{
		ID:          uuid.New(),
		target:      int64(n),
		armed:       make(chan struct{}),
		release:     make(chan struct{}),
		autoRelease: autoRelease,
	}
}

// Arrive records one arrival and blocks until the barrier is released,
// either by auto-release (the arrival that reaches the target count) or by
// an external Release call. It reports whether this call was the one that
// armed the barrier (reached the target count), which, for the symmetric
// per-request case, is who should discard the barrier afterwards.
func (b *Barrier) Arrive(ctx context.Context) (last bool, err error) {
	n := b.count.Add(1)
	last = n == b.target
	if last {
		b.armedOnce.Do(func() { close(b.armed) })
		if b.autoRelease {
			b.Release()
		}
	}
	select {
	case <-b.release:
		return last, nil
	case <-ctx.Done():
		return last, ctx.Err()
	}
}

// WaitArmed blocks, without counting as a participant, until the target
// number of Arrive calls have been recorded. It is how an external
// controller (the scheduler) confirms all expected parties have reached
// the fence before doing unguarded work and eventually calling Release.
func (b *Barrier) WaitArmed(ctx context.Context) error {
	select {
	case <-b.armed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees every goroutine blocked in Arrive. Safe to call multiple
// times and safe to call even if no one ever arrives.
func (b *Barrier) Release() {
	b.releaseOnce.Do(func() { close(b.release) })
}

// Arena holds the current pair of Barriers used by the repartition
// sequence; NewCycle replaces that pair with two newly allocated Barriers,
// so no Barrier object is reused from one cycle to the next.
// Unlike the cross-partition protocol's per-request barriers, the
// repartition fence recurs on a fixed interval, so the arena exists so the
// scheduler doesn't have to reason about barrier lifetime management inline
// in its hot dispatch path — it just asks the arena for a fresh pair at the
// start of each repartition cycle.
type Arena struct {
	mu       sync.Mutex
	tracker  *Barrier
	quiesce  *Barrier
	lastSize int
}

// NewArena returns an empty barrier arena.
func NewArena() *Arena {
	return &Arena{}
}

// NewCycle allocates (or replaces) the pair of barriers for one repartition
// cycle: a 1-party tracker fence and an n-party worker quiesce fence.
func (a *Arena) NewCycle(workerCount int) (trackerFence, quiesceFence *Barrier) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tracker = NewBarrier(1, false)
	a.quiesce = NewBarrier(workerCount, false)
	a.lastSize = workerCount
	return a.tracker, a.quiesce
}
