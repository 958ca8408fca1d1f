package partition

import (
	"context"
	"fmt"

	metis "github.com/Notargets/go-metis"

	"github.com/dreamware/keypart/internal/graph"
)

// METIS adapts the Karypis Lab METIS k-way solver to Partitioner by
// marshaling a Graph into METIS's CSR representation and invoking it as an
// external graph-cut solver over the current Graph snapshot.
type METIS struct {
	// Seed pins METIS's internal RNG so repeated partitions of an unchanged
	// graph produce the same cut. Zero means "let METIS pick".
	Seed int32
}

// NewMETIS returns a METIS-backed partitioner with a fixed seed.
func NewMETIS(seed int32) *METIS {
	return &METIS{Seed: seed}
}

// Partition implements Partitioner. A solver or library failure is
// returned as an error, never a panic, so the scheduler can treat it as
// non-fatal and retain the previous KeyMap.
func (m *METIS) Partition(_ context.Context, g *graph.Graph, k int) ([]int, error) {
	vertices := g.SortedVertices()
	n := len(vertices)
	if n == 0 {
		return nil, nil
	}
	if k <= 0 {
		return nil, fmt.Errorf("partition: metis: invalid partition count %d", k)
	}
	if k == 1 {
		return make([]int, n), nil
	}

	index := make(map[int64]int32, n)
	for i, v := range vertices {
		index[v] = int32(i)
	}

	xadj, adjncy, vwgt, adjwgt := buildCSR(g, vertices, index)

	opts := make([]int32, metis.NoOptions)
	metis.SetDefaultOptions(opts)
	if m.Seed != 0 {
		opts[metis.OptionSeed] = m.Seed
	}
	opts[metis.OptionNumBering] = 0

	part, _, err := metis.PartGraphKwayWeighted(xadj, adjncy, vwgt, adjwgt, int32(k), nil, nil, opts)
	if err != nil {
		return nil, fmt.Errorf("partition: metis: %w", err)
	}

	out := make([]int, n)
	for i, p := range part {
		out[i] = int(p)
	}
	if err := ValidateAssignment(out, n, k); err != nil {
		return nil, err
	}
	return out, nil
}

// buildCSR marshals g into METIS's Compressed Sparse Row adjacency format:
// xadj is a size n+1 offset array, adjncy the concatenated adjacency
// lists, index mapping graph vertex ids to their position in
// g.SortedVertices(), using METIS's C-style zero-based vertex numbering.
func buildCSR(g *graph.Graph, vertices []int64, index map[int64]int32) (xadj, adjncy, vwgt, adjwgt []int32) {
	n := len(vertices)
	xadj = make([]int32, n+1)
	vwgt = make([]int32, n)

	for i, v := range vertices {
		vwgt[i] = int32(g.VertexWeight(v))
		neighbors := g.Neighbors(v)
		xadj[i+1] = xadj[i] + int32(len(neighbors))
		for _, u := range neighbors {
			adjncy = append(adjncy, index[u])
			adjwgt = append(adjwgt, int32(g.EdgeWeight(v, u)))
		}
	}
	return xadj, adjncy, vwgt, adjwgt
}
