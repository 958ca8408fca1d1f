// Package worker implements the per-partition execution unit: an
// unbounded FIFO of wire.ClientMessage (Push never blocks and has no
// capacity limit), a counting semaphore
// signalling queue non-emptiness, and a single consumer goroutine that
// executes requests against the shared store and a Barrier-based SYNC
// protocol used for cross-partition isolation and repartition quiescing.
//
// Workers are independent: the only state they share with one another is
// the store (key-disjoint in practice once the KeyMap is respected) and
// whatever Barrier a SYNC message happens to reference.
package worker
