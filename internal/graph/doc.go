// Package graph implements the workload graph tracked by the pattern
// tracker: a weighted, undirected graph over keys whose vertex weights
// count accesses and whose edge weights count co-accesses within a single
// multi-key request.
//
// # Overview
//
// The graph has exactly one writer (the pattern tracker goroutine) and is
// read in full only while that writer is fenced at a repartition barrier
// (see internal/scheduler). Because of that single-writer/fenced-reader
// discipline, most mutation paths need no locking at all; the RWMutex here
// exists only so the type remains safe if that discipline is ever violated
// by a test or a future caller: any implementation that exposes the Graph
// to concurrent readers outside the fence needs an RW lock to stay correct.
//
// # Determinism
//
// SortedVertices returns vertices in ascending key order. The partitioner
// depends on this for reproducible cuts: running FENNEL twice over an
// unchanged graph must produce bit-identical assignment vectors, which
// requires a stable enumeration order.
package graph
