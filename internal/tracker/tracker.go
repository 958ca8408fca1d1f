package tracker

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/dreamware/keypart/internal/graph"
	"github.com/dreamware/keypart/internal/sync2"
	"github.com/dreamware/keypart/internal/wire"
)

// pairwiseEdgeFanout bounds how many partner edges a single key within a
// wide SCAN range contributes. For key sets of at most this many keys every
// pair gets an edge; above it, a full O(N^2) expansion would let one huge
// scan dominate the Graph, so each key's partners are instead chosen
// deterministically by hashing, up to this many picks per key.
const pairwiseEdgeFanout = 32

// Shadow is what the scheduler pushes to the tracker: either a shadow
// copy of an admitted non-SYNC request (Barrier nil) or a SYNC fence
// marker (Barrier set, everything else ignored).
type Shadow struct {
	Kind wire.Kind
	// Key is the first key touched; for a Scan, the key set is
	// {Key, Key+1, ..., Key+N-1}.
	Key int64
	// N is the scan length; meaningful only when Kind == wire.Scan.
	N int
	// Partitions is the involved-partition set the scheduler computed for
	// this request, used to maintain per-partition access counters.
	Partitions []int
	// Barrier, if non-nil, marks this Shadow as a SYNC fence: the tracker
	// arrives at it instead of folding anything into the Graph.
	Barrier *sync2.Barrier
}

// Tracker is the single consumer that folds Shadows into a Graph.
type Tracker struct {
	graph *graph.Graph

	queueMu sync.Mutex
	queue   []Shadow
	sem     *semaphore.Weighted

	shutdown atomic.Bool

	countsMu sync.Mutex
	counts   map[int]uint64
}

// New returns a tracker that updates g. It does not start consuming until
// Run is called.
func New(g *graph.Graph) *Tracker {
	return &Tracker{
		graph:  g,
		sem:    semaphore.NewWeighted(math.MaxInt64),
		counts: make(map[int]uint64),
	}
}

// Push enqueues s. Non-blocking.
func (t *Tracker) Push(s Shadow) {
	t.queueMu.Lock()
	t.queue = append(t.queue, s)
	t.queueMu.Unlock()
	t.sem.Release(1)
}

// Shutdown asks Run to exit once the queue drains.
func (t *Tracker) Shutdown() {
	if t.shutdown.CompareAndSwap(false, true) {
		t.sem.Release(1)
	}
}

// Run is the tracker's consumer loop.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		if err := t.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		s, ok := t.pop()
		if !ok {
			if t.shutdown.Load() {
				return nil
			}
			continue
		}
		t.apply(ctx, s)
	}
}

func (t *Tracker) pop() (Shadow, bool) {
	t.queueMu.Lock()
	defer t.queueMu.Unlock()
	if len(t.queue) == 0 {
		return Shadow{}, false
	}
	s := t.queue[0]
	t.queue = t.queue[1:]
	return s, true
}

func (t *Tracker) apply(ctx context.Context, s Shadow) {
	if s.Barrier != nil {
		_, _ = s.Barrier.Arrive(ctx)
		return
	}

	keys := keySet(s)
	for _, k := range keys {
		t.graph.IncVertex(k, 1)
	}
	t.applyEdges(keys)

	if len(s.Partitions) > 0 {
		t.countsMu.Lock()
		for _, p := range s.Partitions {
			t.counts[p]++
		}
		t.countsMu.Unlock()
	}
}

// applyEdges increments an edge for every pair in keys when the set is
// small enough, falling back to a bounded hashed-partner selection for
// wide scans (see pairwiseEdgeFanout).
func (t *Tracker) applyEdges(keys []int64) {
	if len(keys) <= pairwiseEdgeFanout {
		for i := 0; i < len(keys); i++ {
			for j := i + 1; j < len(keys); j++ {
				t.graph.IncEdge(keys[i], keys[j], 1)
			}
		}
		return
	}
	for i, ki := range keys {
		for salt := 1; salt <= pairwiseEdgeFanout; salt++ {
			j := hashedPartnerIndex(ki, salt, len(keys))
			if j == i {
				continue
			}
			t.graph.IncEdge(ki, keys[j], 1)
		}
	}
}

// hashedPartnerIndex deterministically maps (key, salt) to an index into a
// key set of size n, used to pick a bounded set of partner keys for wide
// scans instead of enumerating every pair.
func hashedPartnerIndex(key int64, salt int, n int) int {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(key))
	binary.BigEndian.PutUint64(buf[8:], uint64(salt))
	h := xxhash.Sum64(buf[:])
	return int(h % uint64(n))
}

// keySet extracts the key set touched by a shadow: a singleton for
// READ/WRITE, the contiguous range [Key, Key+N) for SCAN.
func keySet(s Shadow) []int64 {
	if s.Kind != wire.Scan {
		return []int64{s.Key}
	}
	if s.N <= 0 {
		return nil
	}
	keys := make([]int64, s.N)
	for i := 0; i < s.N; i++ {
		keys[i] = s.Key + int64(i)
	}
	return keys
}

// PartitionAccessCount returns the number of requests observed that
// touched partition p.
func (t *Tracker) PartitionAccessCount(p int) uint64 {
	t.countsMu.Lock()
	defer t.countsMu.Unlock()
	return t.counts[p]
}
