// Package scheduler implements the core orchestrator:
// schedule_and_answer routes each admitted ClientMessage to one or more
// Partition workers, wraps multi-key requests in a cross-partition
// isolation protocol built on sync2.Barrier, feeds a shadow copy of every
// request to the Pattern tracker, and periodically runs the repartition
// sequence that fences the tracker and workers, recomputes the KeyMap via
// a partition.Partitioner, and installs it atomically.
package scheduler
