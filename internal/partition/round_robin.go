package partition

import (
	"context"

	"github.com/dreamware/keypart/internal/graph"
)

// RoundRobin assigns P[i] = i mod K. It is the fallback cut and the one
// used to place a brand-new key before any graph data exists.
type RoundRobin struct{}

// NewRoundRobin returns a stateless round-robin partitioner.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Partition implements Partitioner.
func (RoundRobin) Partition(_ context.Context, g *graph.Graph, k int) ([]int, error) {
	vertices := g.SortedVertices()
	p := make([]int, len(vertices))
	for i := range vertices {
		p[i] = i % k
	}
	return p, nil
}
