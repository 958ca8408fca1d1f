package tracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/keypart/internal/graph"
	"github.com/dreamware/keypart/internal/sync2"
	"github.com/dreamware/keypart/internal/tracker"
	"github.com/dreamware/keypart/internal/wire"
)

func runInBackground(t *testing.T, tr *tracker.Tracker) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = tr.Run(ctx)
		close(done)
	}()
	return func() {
		tr.Shutdown()
		cancel()
		<-done
	}
}

func TestSingleKeyRequestIncrementsVertexOnly(t *testing.T) {
	g := graph.New()
	tr := tracker.New(g)
	stop := runInBackground(t, tr)
	defer stop()

	tr.Push(tracker.Shadow{Kind: wire.Write, Key: 5, Partitions: []int{0}})

	// partition counters are the last thing a shadow updates.
	require.Eventually(t, func() bool { return tr.PartitionAccessCount(0) == 1 }, time.Second, time.Millisecond)
	assert.True(t, g.HasVertex(5))
	assert.Equal(t, int64(1), g.VertexWeight(5))
	assert.Equal(t, uint64(1), tr.PartitionAccessCount(0))
}

func TestScanIncrementsEveryPairwiseEdge(t *testing.T) {
	g := graph.New()
	tr := tracker.New(g)
	stop := runInBackground(t, tr)
	defer stop()

	tr.Push(tracker.Shadow{Kind: wire.Scan, Key: 10, N: 3, Partitions: []int{0, 1}})

	require.Eventually(t, func() bool { return tr.PartitionAccessCount(1) == 1 }, time.Second, time.Millisecond)
	assert.True(t, g.HasVertex(12))
	assert.True(t, g.HasEdge(10, 11))
	assert.True(t, g.HasEdge(11, 12))
	assert.True(t, g.HasEdge(10, 12))
	assert.Equal(t, uint64(1), tr.PartitionAccessCount(0))
	assert.Equal(t, uint64(1), tr.PartitionAccessCount(1))
}

func TestWideScanBoundsEdgeCountInsteadOfFullPairwiseExpansion(t *testing.T) {
	g := graph.New()
	tr := tracker.New(g)
	stop := runInBackground(t, tr)
	defer stop()

	const n = 200
	tr.Push(tracker.Shadow{Kind: wire.Scan, Key: 1000, N: n, Partitions: []int{0}})

	require.Eventually(t, func() bool { return tr.PartitionAccessCount(0) == 1 }, time.Second, time.Millisecond)
	assert.True(t, g.HasVertex(1000+n-1))
	assert.Equal(t, n, g.NumVertices())
	assert.Less(t, g.NumEdges(), n*(n-1)/2)
	assert.Greater(t, g.NumEdges(), 0)
}

func TestSyncMarkerArrivesAtBarrierWithoutTouchingGraph(t *testing.T) {
	g := graph.New()
	tr := tracker.New(g)
	stop := runInBackground(t, tr)
	defer stop()

	b := sync2.NewBarrier(1, false)
	tr.Push(tracker.Shadow{Barrier: b})

	err := b.WaitArmed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, g.NumVertices())
}
