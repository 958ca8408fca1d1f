package worker

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/dreamware/keypart/internal/store"
	"github.com/dreamware/keypart/internal/wire"
)

// errorAnswer is the fixed reply text for a request the scheduler or a
// worker could not execute.
const errorAnswer = "ERROR"

// TimestampSample is one (request id, completion time) entry in a
// worker's local log, populated only for messages with RecordTimestamp
// set.
type TimestampSample struct {
	ID int32
	At time.Time
}

// Stats is a point-in-time snapshot of a worker's operation counters.
type Stats struct {
	Executed uint64
}

// Worker owns one partition's FIFO queue, execution thread, and key
// membership set. A Worker must be driven by a single call to Run; every
// other method is safe to call from other goroutines.
type Worker struct {
	id    int
	store *store.Store

	queueMu sync.Mutex
	queue   []wire.ClientMessage
	sem     *semaphore.Weighted

	shutdown atomic.Bool
	executed atomic.Uint64

	tsMu       sync.Mutex
	timestamps []TimestampSample

	keysMu sync.RWMutex
	keys   map[int64]struct{}
}

// New returns a worker for partition id backed by the shared store. The
// worker does not start consuming until Run is called.
func New(id int, st *store.Store) *Worker {
	return &Worker{
		id:    id,
		store: st,
		sem:   semaphore.NewWeighted(math.MaxInt64),
		keys:  make(map[int64]struct{}),
	}
}

// ID returns the worker's partition id.
func (w *Worker) ID() int { return w.id }

// Push enqueues m and signals the semaphore. Non-blocking, safe for
// concurrent callers (the scheduler is the single producer in practice,
// but Push itself does not depend on that).
func (w *Worker) Push(m wire.ClientMessage) {
	w.queueMu.Lock()
	w.queue = append(w.queue, m)
	w.queueMu.Unlock()
	w.sem.Release(1)
}

// QueueDepth returns the current number of pending messages.
func (w *Worker) QueueDepth() int {
	w.queueMu.Lock()
	defer w.queueMu.Unlock()
	return len(w.queue)
}

// Shutdown asks Run to exit once the queue drains. It is idempotent.
func (w *Worker) Shutdown() {
	if w.shutdown.CompareAndSwap(false, true) {
		w.sem.Release(1)
	}
}

// Run is the worker loop: wait on the semaphore, pop one message under
// the queue lock, execute it, update counters — until shutdown is
// requested and the queue is empty, or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := w.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		m, ok := w.pop()
		if !ok {
			if w.shutdown.Load() {
				return nil
			}
			continue
		}
		w.execute(ctx, m)
	}
}

func (w *Worker) pop() (wire.ClientMessage, bool) {
	w.queueMu.Lock()
	defer w.queueMu.Unlock()
	if len(w.queue) == 0 {
		return wire.ClientMessage{}, false
	}
	m := w.queue[0]
	w.queue = w.queue[1:]
	return m, true
}

func (w *Worker) execute(ctx context.Context, m wire.ClientMessage) {
	if m.Kind == wire.Sync {
		w.participateSync(ctx, m)
		return
	}

	answer := w.answerFor(m)
	if m.ReplyTo != nil {
		m.ReplyTo(wire.ReplyMessage{ID: m.ID, Answer: answer})
	}
	if m.RecordTimestamp {
		w.recordTimestamp(m.ID)
	}
	w.executed.Add(1)
}

// participateSync arrives at the referenced barrier and blocks until it
// is released. The last arriver to an auto-releasing barrier destroys it
// by releasing every participant (sync2.Barrier); a SYNC message produces
// no reply.
func (w *Worker) participateSync(ctx context.Context, m wire.ClientMessage) {
	if m.Barrier == nil {
		return
	}
	_, _ = m.Barrier.Arrive(ctx)
}

func (w *Worker) answerFor(m wire.ClientMessage) string {
	switch m.Kind {
	case wire.Read:
		v, ok := w.store.Read(m.Key)
		if !ok {
			return ""
		}
		return string(v)
	case wire.Write:
		w.store.Write(m.Key, m.Args)
		w.trackKey(m.Key)
		return string(m.Args)
	case wire.Scan:
		n, err := strconv.Atoi(string(m.Args))
		if err != nil {
			return errorAnswer
		}
		values := w.store.Scan(m.Key, n)
		var sb strings.Builder
		for _, v := range values {
			sb.Write(v)
			sb.WriteByte(',')
		}
		return sb.String()
	default:
		return errorAnswer
	}
}

func (w *Worker) recordTimestamp(id int32) {
	w.tsMu.Lock()
	w.timestamps = append(w.timestamps, TimestampSample{ID: id, At: time.Now()})
	w.tsMu.Unlock()
}

// Timestamps returns a copy of the worker's local completion-time log.
func (w *Worker) Timestamps() []TimestampSample {
	w.tsMu.Lock()
	defer w.tsMu.Unlock()
	out := make([]TimestampSample, len(w.timestamps))
	copy(out, w.timestamps)
	return out
}

// trackKey adds k to the worker's membership set. The scheduler is the
// authority on partition ownership (via SetKeys after a repartition); this
// just keeps the set current between repartitions as new keys are
// written.
func (w *Worker) trackKey(k int64) {
	w.keysMu.Lock()
	w.keys[k] = struct{}{}
	w.keysMu.Unlock()
}

// TrackKey is the exported form of trackKey, used by the scheduler to
// register a key's membership immediately after Seed assigns it a
// partition, without routing a synthetic request through the queue.
func (w *Worker) TrackKey(k int64) {
	w.trackKey(k)
}

// SetKeys replaces the worker's membership set wholesale, called by the
// scheduler immediately after installing a new KeyMap.
func (w *Worker) SetKeys(keys []int64) {
	w.keysMu.Lock()
	defer w.keysMu.Unlock()
	w.keys = make(map[int64]struct{}, len(keys))
	for _, k := range keys {
		w.keys[k] = struct{}{}
	}
}

// Keys returns a sorted snapshot of the worker's membership set.
func (w *Worker) Keys() []int64 {
	w.keysMu.RLock()
	defer w.keysMu.RUnlock()
	out := make([]int64, 0, len(w.keys))
	for k := range w.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GetStats returns a snapshot of the worker's operation counters.
func (w *Worker) GetStats() Stats {
	return Stats{Executed: w.executed.Load()}
}
