package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/keypart/internal/graph"
	"github.com/dreamware/keypart/internal/partition"
	"github.com/dreamware/keypart/internal/scheduler"
	"github.com/dreamware/keypart/internal/store"
	"github.com/dreamware/keypart/internal/tracker"
	"github.com/dreamware/keypart/internal/wire"
	"github.com/dreamware/keypart/internal/worker"
)

type testRig struct {
	sched   *scheduler.Scheduler
	workers []*worker.Worker
	tracker *tracker.Tracker
	store   *store.Store
	graph   *graph.Graph
	cancel  context.CancelFunc
	done    chan struct{}
}

func newRig(t *testing.T, k int, interval int64, p partition.Partitioner) *testRig {
	t.Helper()
	st := store.New()
	g := graph.New()
	tr := tracker.New(g)
	workers := make([]*worker.Worker, k)
	for i := range workers {
		workers[i] = worker.New(i, st)
	}

	cfg := scheduler.Config{K: k, RepartitionInterval: interval, CutMethod: partition.MethodRoundRobin}
	sched, err := scheduler.New(cfg, workers, tr, g, p, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var running []func() error
	running = append(running, func() error { return tr.Run(ctx) })
	for _, w := range workers {
		w := w
		running = append(running, func() error { return w.Run(ctx) })
	}
	done := make(chan struct{})
	go func() {
		ch := make(chan struct{}, len(running))
		for _, fn := range running {
			fn := fn
			go func() { _ = fn(); ch <- struct{}{} }()
		}
		for range running {
			<-ch
		}
		close(done)
	}()

	return &testRig{sched: sched, workers: workers, tracker: tr, store: st, graph: g, cancel: cancel, done: done}
}

func (r *testRig) stop(t *testing.T) {
	t.Helper()
	for _, w := range r.workers {
		w.Shutdown()
	}
	r.tracker.Shutdown()
	r.cancel()
	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("rig did not shut down in time")
	}
}

func reply(ch chan wire.ReplyMessage) wire.ReplyFunc {
	return func(r wire.ReplyMessage) { ch <- r }
}

func TestRoundRobinRoutesNewWriteKeys(t *testing.T) {
	rig := newRig(t, 2, 0, partition.NewRoundRobin())
	defer rig.stop(t)
	ctx := context.Background()
	replies := make(chan wire.ReplyMessage, 3)

	require.NoError(t, rig.sched.ScheduleAndAnswer(ctx, wire.ClientMessage{ID: 1, Kind: wire.Write, Key: 0, Args: []byte("a"), ReplyTo: reply(replies)}))
	require.NoError(t, rig.sched.ScheduleAndAnswer(ctx, wire.ClientMessage{ID: 2, Kind: wire.Write, Key: 1, Args: []byte("b"), ReplyTo: reply(replies)}))
	require.NoError(t, rig.sched.ScheduleAndAnswer(ctx, wire.ClientMessage{ID: 3, Kind: wire.Write, Key: 2, Args: []byte("c"), ReplyTo: reply(replies)}))
	for i := 0; i < 3; i++ {
		<-replies
	}

	p0, ok := rig.sched.KeyMap().Lookup(0)
	require.True(t, ok)
	assert.Equal(t, 0, p0)
	p1, ok := rig.sched.KeyMap().Lookup(1)
	require.True(t, ok)
	assert.Equal(t, 1, p1)
	p2, ok := rig.sched.KeyMap().Lookup(2)
	require.True(t, ok)
	assert.Equal(t, 0, p2, "round-robin cursor wraps back to partition 0")
}

func TestReadOnUnknownKeyBecomesError(t *testing.T) {
	rig := newRig(t, 2, 0, partition.NewRoundRobin())
	defer rig.stop(t)
	replies := make(chan wire.ReplyMessage, 1)

	require.NoError(t, rig.sched.ScheduleAndAnswer(context.Background(), wire.ClientMessage{ID: 9, Kind: wire.Read, Key: 999, ReplyTo: reply(replies)}))

	r := <-replies
	assert.Equal(t, "ERROR", r.Answer)
}

func TestCrossPartitionScanReturnsAllValuesInOrder(t *testing.T) {
	rig := newRig(t, 2, 0, partition.NewRoundRobin())
	defer rig.stop(t)
	ctx := context.Background()
	replies := make(chan wire.ReplyMessage, 4)

	for i, v := range []string{"x", "y", "z", "w"} {
		require.NoError(t, rig.sched.ScheduleAndAnswer(ctx, wire.ClientMessage{ID: int32(i), Kind: wire.Write, Key: int64(i), Args: []byte(v), ReplyTo: reply(replies)}))
	}
	for i := 0; i < 4; i++ {
		<-replies
	}

	// keys 0..3 alternate partitions 0,1,0,1: a 4-key SCAN from key 0 spans
	// both partitions and must execute in isolation from concurrent access.
	scanReplies := make(chan wire.ReplyMessage, 1)
	require.NoError(t, rig.sched.ScheduleAndAnswer(ctx, wire.ClientMessage{ID: 100, Kind: wire.Scan, Key: 0, Args: []byte("4"), ReplyTo: reply(scanReplies)}))

	select {
	case r := <-scanReplies:
		assert.Equal(t, "x,y,z,w,", r.Answer)
	case <-time.After(time.Second):
		t.Fatal("cross-partition scan never completed")
	}
}

func TestRepartitionFiresAtInterval(t *testing.T) {
	rig := newRig(t, 2, 2, partition.NewRoundRobin())
	defer rig.stop(t)
	ctx := context.Background()
	replies := make(chan wire.ReplyMessage, 2)

	require.NoError(t, rig.sched.ScheduleAndAnswer(ctx, wire.ClientMessage{ID: 1, Kind: wire.Write, Key: 0, Args: []byte("a"), ReplyTo: reply(replies)}))
	<-replies
	require.NoError(t, rig.sched.ScheduleAndAnswer(ctx, wire.ClientMessage{ID: 2, Kind: wire.Write, Key: 1, Args: []byte("b"), ReplyTo: reply(replies)}))
	<-replies

	// the second dispatch lands dispatched_counter on the interval boundary
	// and blocks inside ScheduleAndAnswer until the repartition sequence
	// completes, so by the time we get here the KeyMap has been rebuilt.
	require.Eventually(t, func() bool {
		_, ok := rig.sched.KeyMap().Lookup(0)
		return ok
	}, time.Second, time.Millisecond)
	p0, ok := rig.sched.KeyMap().Lookup(0)
	require.True(t, ok)
	assert.Equal(t, 0, p0)
}

func TestRepartitionAbortsOnInvalidAssignment(t *testing.T) {
	rig := newRig(t, 2, 1, brokenPartitioner{})
	defer rig.stop(t)
	replies := make(chan wire.ReplyMessage, 1)

	require.Error(t, rig.sched.ScheduleAndAnswer(context.Background(), wire.ClientMessage{ID: 1, Kind: wire.Write, Key: 0, Args: []byte("a"), ReplyTo: reply(replies)}))
	<-replies

	// KeyMap must retain the round-robin allocation made before the failed
	// repartition attempt.
	p0, ok := rig.sched.KeyMap().Lookup(0)
	require.True(t, ok)
	assert.Equal(t, 0, p0)
}

type brokenPartitioner struct{}

func (brokenPartitioner) Partition(_ context.Context, g *graph.Graph, k int) ([]int, error) {
	// deliberately wrong length to exercise the "abort install" path.
	return []int{0, 0, 0}, nil
}
