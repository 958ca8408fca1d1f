package partition

import (
	"context"

	"github.com/dreamware/keypart/internal/graph"
)

// Partitioner computes a key→partition assignment over a quiescent Graph.
// Implementations must return a vector of length g.NumVertices() with every
// entry in [0,k); the scheduler treats any other shape as a partitioner
// failure and keeps the previous KeyMap.
type Partitioner interface {
	Partition(ctx context.Context, g *graph.Graph, k int) ([]int, error)
}

// Method names the configured cut strategy (the repartition_method
// configuration field).
type Method string

const (
	MethodMETIS      Method = "METIS"
	MethodKaHIP      Method = "KAHIP"
	MethodFennel     Method = "FENNEL"
	MethodReFennel   Method = "REFENNEL"
	MethodRoundRobin Method = "ROUND_ROBIN"
)

// ValidateAssignment checks that p is a well-formed assignment vector for n
// vertices and k partitions: length |V| with every id in [0,K), the
// behavioral contract every partitioner must honor.
func ValidateAssignment(p []int, n, k int) error {
	if len(p) != n {
		return &InvalidAssignmentError{Reason: "wrong length", Got: len(p), Want: n}
	}
	for _, id := range p {
		if id < 0 || id >= k {
			return &InvalidAssignmentError{Reason: "partition id out of range", Got: id, Want: k}
		}
	}
	return nil
}

// InvalidAssignmentError reports why a partitioner's output failed
// validation; on this error the scheduler retains the current KeyMap.
type InvalidAssignmentError struct {
	Reason string
	Got    int
	Want   int
}

func (e *InvalidAssignmentError) Error() string {
	return "partition: invalid assignment: " + e.Reason
}
