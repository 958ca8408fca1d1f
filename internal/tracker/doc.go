// Package tracker implements the pattern tracker: a background consumer
// that watches a shadow copy of every admitted
// request and folds it into the shared workload Graph — incrementing a
// vertex for every touched key and an edge for every pair of keys touched
// together in one request — plus per-partition access counters, exposed
// through PartitionAccessCount. No partitioner reads those counters.
//
// Every pair gets an edge only for key sets of at most pairwiseEdgeFanout
// keys. A wider SCAN does not produce the full pairwise expansion: each of
// its keys instead gets edges to at most pairwiseEdgeFanout partners picked
// by hashing.
//
// The tracker also answers the scheduler's repartition fence: a shadow
// carrying a Barrier instead of a request is a SYNC marker, and the
// tracker arrives at it so the scheduler can observe a quiescent Graph
// before invoking the partitioner.
package tracker
