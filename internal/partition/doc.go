// Package partition implements the graph-cut strategies the scheduler uses
// to recompute the key→partition mapping: round-robin, FENNEL, re-FENNEL,
// and adapters to the external METIS and KaHIP solvers.
//
// Every strategy implements Partitioner: given a quiescent Graph and a
// target partition count K, produce an assignment vector P such that P[i]
// is the partition id for graph.SortedVertices()[i]. That enumeration
// order is what makes FENNEL's determinism meaningful: two calls over an
// unchanged graph must walk vertices in the same order to produce the
// same cut.
package partition
