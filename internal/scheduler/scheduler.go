package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/keypart/internal/graph"
	"github.com/dreamware/keypart/internal/partition"
	"github.com/dreamware/keypart/internal/sync2"
	"github.com/dreamware/keypart/internal/tracker"
	"github.com/dreamware/keypart/internal/wire"
	"github.com/dreamware/keypart/internal/worker"
)

// Recorder receives scheduler-level events for metrics export.
// Implementations must not block the dispatch path.
type Recorder interface {
	ObserveDispatch()
	ObserveRouteError()
	ObserveRepartition()
}

// noopRecorder is used when the caller supplies no Recorder.
type noopRecorder struct{}

func (noopRecorder) ObserveDispatch()    {}
func (noopRecorder) ObserveRouteError()  {}
func (noopRecorder) ObserveRepartition() {}

// Config carries the scheduler's fixed state: the partition count K, the
// chosen CutMethod, and the repartition_interval N (0 disables).
type Config struct {
	K                   int
	RepartitionInterval int64
	CutMethod           partition.Method
}

// Scheduler is the core orchestrator. Construct with New; ScheduleAndAnswer
// is safe to call concurrently from any number of ingress goroutines — an
// ingress mutex serializes the whole admit-route-shadow-maybe-repartition
// sequence into the single totally-ordered stream the rest of the design
// assumes (per-key ordering, and a repartition cycle that owns the arena's
// barrier pair outright rather than racing a second cycle for it).
type Scheduler struct {
	cfg Config

	ingressMu sync.Mutex

	workers []*worker.Worker
	tracker *tracker.Tracker
	graph   *graph.Graph
	keyMap  *KeyMap
	arena   *sync2.Arena

	partitioner partition.Partitioner
	logger      *zap.Logger
	recorder    Recorder

	rrCursor          atomic.Int64
	syncCounter       atomic.Int64
	dispatchedCounter atomic.Int64
}

// New builds a Scheduler over a fixed worker set. len(workers) must equal
// cfg.K, and workers[i].ID() must equal i.
func New(cfg Config, workers []*worker.Worker, tr *tracker.Tracker, g *graph.Graph, p partition.Partitioner, logger *zap.Logger, recorder Recorder) (*Scheduler, error) {
	if len(workers) != cfg.K {
		return nil, fmt.Errorf("scheduler: got %d workers, want K=%d", len(workers), cfg.K)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Scheduler{
		cfg:         cfg,
		workers:     workers,
		tracker:     tr,
		graph:       g,
		keyMap:      NewKeyMap(),
		arena:       sync2.NewArena(),
		partitioner: p,
		logger:      logger,
		recorder:    recorder,
	}, nil
}

// KeyMap exposes the live key→partition table, primarily for tests and
// diagnostics.
func (s *Scheduler) KeyMap() *KeyMap { return s.keyMap }

// Seed registers keys that were written directly into Storage ahead of
// live traffic (the load_requests_path / n_initial_keys pre-population) by
// round-robin allocating each one a partition and notifying the Pattern
// tracker, exactly as allocateNewKey does for a brand-new WRITE key.
// Without this step a pre-populated key would satisfy Storage.Read but
// fail KeyMap.Lookup, wrongly surfacing as a routing error: every key
// referenced after its first WRITE must be present in KeyMap. Keys
// already present in KeyMap are left untouched.
func (s *Scheduler) Seed(keys []int64) {
	for _, k := range keys {
		if _, ok := s.keyMap.Lookup(k); ok {
			continue
		}
		p := s.allocateNewKey(k)
		s.workers[p].TrackKey(k)
	}
}

// ScheduleAndAnswer implements the admission contract: route m to its
// involved partitions, enforce cross-partition isolation when it touches
// more than one, shadow it to the Pattern tracker, and trigger a
// repartition when the dispatch interval fires. Callers may invoke this
// concurrently (e.g. one goroutine per admission connection); the ingress
// mutex below serializes the whole sequence so that two requests landing
// on opposite sides of a repartition-interval boundary cannot both enter
// Repartition at once and contend over the arena's single barrier pair.
func (s *Scheduler) ScheduleAndAnswer(ctx context.Context, m wire.ClientMessage) error {
	s.ingressMu.Lock()
	defer s.ingressMu.Unlock()

	if m.Kind == wire.Sync {
		return nil
	}

	if m.Kind == wire.Write {
		if _, ok := s.keyMap.Lookup(m.Key); !ok {
			s.allocateNewKey(m.Key)
		}
	}

	partitions, ok := s.involvedPartitions(m)
	if !ok {
		m.Kind = wire.Error
		s.workers[0].Push(m)
		s.recorder.ObserveRouteError()
		// Unlike a normal dispatch, a routing error is not shadowed to the
		// tracker: m.Key was never resolved to a partition, so folding it in
		// would create a graph vertex for a key the KeyMap doesn't know
		// about. If a later repartition then maps that key, a subsequent
		// READ would find it present and return its (never written) empty
		// value instead of surfacing the same routing error again.
		return s.afterDispatch(ctx)
	}

	if len(partitions) == 1 {
		s.workers[partitions[0]].Push(m)
	} else {
		s.crossPartitionDispatch(partitions, m)
	}

	s.pushShadow(m, partitions)
	return s.afterDispatch(ctx)
}

// allocateNewKey places a never-before-seen WRITE key at the round-robin
// cursor and registers a synthetic WRITE with the tracker so the new
// vertex exists before the request's own shadow arrives.
func (s *Scheduler) allocateNewKey(key int64) int {
	p := int(s.rrCursor.Load())
	s.rrCursor.Store(int64((p + 1) % s.cfg.K))
	s.keyMap.Assign(key, p)
	s.tracker.Push(tracker.Shadow{Kind: wire.Write, Key: key, N: 1, Partitions: []int{p}})
	return p
}

// involvedPartitions computes the set of partitions m's key set maps to.
// The returned slice is sorted ascending, which is what makes "lowest id"
// selection in the cross-partition protocol a simple partitions[0].
func (s *Scheduler) involvedPartitions(m wire.ClientMessage) ([]int, bool) {
	switch m.Kind {
	case wire.Read, wire.Write:
		p, ok := s.keyMap.Lookup(m.Key)
		if !ok {
			return nil, false
		}
		return []int{p}, true

	case wire.Scan:
		n, err := strconv.Atoi(string(m.Args))
		if err != nil || n <= 0 {
			return nil, false
		}
		seen := make(map[int]struct{})
		for i := 0; i < n; i++ {
			p, ok := s.keyMap.Lookup(m.Key + int64(i))
			if !ok {
				return nil, false
			}
			seen[p] = struct{}{}
		}
		out := make([]int, 0, len(seen))
		for p := range seen {
			out = append(out, p)
		}
		sort.Ints(out)
		return out, true

	default:
		return nil, false
	}
}

// crossPartitionDispatch fences every involved partition at a SYNC_pre
// barrier, runs the request on the lowest-id partition, then fences every
// involved partition again at a SYNC_post barrier. Both barriers
// auto-release: the arriving worker that completes the rendezvous frees
// every participant, with no external controller involved.
func (s *Scheduler) crossPartitionDispatch(partitions []int, m wire.ClientMessage) {
	pre := sync2.NewBarrier(len(partitions), true)
	post := sync2.NewBarrier(len(partitions), true)
	designated := partitions[0]

	for _, p := range partitions {
		s.workers[p].Push(wire.ClientMessage{Kind: wire.Sync, Barrier: pre})
	}
	s.workers[designated].Push(m)
	for _, p := range partitions {
		s.workers[p].Push(wire.ClientMessage{Kind: wire.Sync, Barrier: post})
	}
	s.syncCounter.Add(2)
}

// pushShadow forwards a shadow copy of m to the Pattern tracker. SYNC
// messages never reach here.
func (s *Scheduler) pushShadow(m wire.ClientMessage, partitions []int) {
	n := 1
	if m.Kind == wire.Scan {
		if parsed, err := strconv.Atoi(string(m.Args)); err == nil {
			n = parsed
		}
	}
	s.tracker.Push(tracker.Shadow{Kind: m.Kind, Key: m.Key, N: n, Partitions: partitions})
}

// afterDispatch increments dispatched_counter and, at the configured
// interval, runs the repartition sequence. Called only from inside
// ScheduleAndAnswer, which already holds ingressMu, so it calls
// repartitionLocked directly rather than the exported, self-locking
// Repartition (sync.Mutex is not reentrant).
func (s *Scheduler) afterDispatch(ctx context.Context) error {
	s.recorder.ObserveDispatch()
	d := s.dispatchedCounter.Add(1)
	if s.cfg.RepartitionInterval > 0 && d%s.cfg.RepartitionInterval == 0 {
		return s.repartitionLocked(ctx)
	}
	return nil
}

// Repartition runs the full fence → snapshot → cut → install → release
// sequence. It is exported so callers outside the dispatch path (such as
// tests) can also trigger it directly; the
// ingress mutex ensures a manually triggered cycle cannot interleave with
// one fired by the dispatch-interval counter inside ScheduleAndAnswer.
func (s *Scheduler) Repartition(ctx context.Context) error {
	s.ingressMu.Lock()
	defer s.ingressMu.Unlock()
	return s.repartitionLocked(ctx)
}

// repartitionLocked is Repartition's body; callers must already hold
// ingressMu.
func (s *Scheduler) repartitionLocked(ctx context.Context) error {
	trackerFence, quiesceFence := s.arena.NewCycle(len(s.workers))

	s.tracker.Push(tracker.Shadow{Barrier: trackerFence})
	if err := trackerFence.WaitArmed(ctx); err != nil {
		return fmt.Errorf("scheduler: repartition: tracker fence: %w", err)
	}

	vertices := s.graph.SortedVertices()
	assignment, err := s.partitioner.Partition(ctx, s.graph, s.cfg.K)
	if err != nil {
		s.logger.Error("partitioner failed, keeping current KeyMap", zap.Error(err), zap.String("method", string(s.cfg.CutMethod)))
		trackerFence.Release()
		return err
	}
	if err := partition.ValidateAssignment(assignment, len(vertices), s.cfg.K); err != nil {
		s.logger.Error("partitioner returned invalid assignment, keeping current KeyMap", zap.Error(err))
		trackerFence.Release()
		return err
	}

	newMap := make(map[int64]int, len(vertices))
	byPartition := make(map[int][]int64, s.cfg.K)
	for i, v := range vertices {
		p := assignment[i]
		newMap[v] = p
		byPartition[p] = append(byPartition[p], v)
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, w := range s.workers {
		w := w
		group.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			w.Push(wire.ClientMessage{Kind: wire.Sync, Barrier: quiesceFence})
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		trackerFence.Release()
		return fmt.Errorf("scheduler: repartition: quiesce fan-out: %w", err)
	}
	if err := quiesceFence.WaitArmed(ctx); err != nil {
		trackerFence.Release()
		return fmt.Errorf("scheduler: repartition: quiesce fence: %w", err)
	}

	s.keyMap.Install(newMap)
	for _, w := range s.workers {
		w.SetKeys(byPartition[w.ID()])
	}

	trackerFence.Release()
	quiesceFence.Release()
	s.recorder.ObserveRepartition()
	return nil
}
