// Package sync2 provides the multi-party rendezvous primitives the
// scheduler threads through partition-worker and pattern-tracker queues.
//
// Two distinct rendezvous shapes are needed, and a single Barrier type
// serves both:
//
//   - Symmetric rendezvous (the cross-partition protocol): every
//     participant calls Arrive and all are released together the instant
//     the last one shows up. Barrier's autoRelease mode implements this
//     directly; the participant for whom Arrive reports last=true is the
//     one responsible for discarding the (per-request) Barrier.
//
//   - Controller-fenced rendezvous (the repartition sequence): the
//     scheduler needs to confirm that a bounded set of participants (the
//     pattern tracker, or all K workers) have reached a fence point and
//     are now parked, do some unguarded work of its own (read the Graph,
//     run the partitioner, install the KeyMap), and only then let the
//     parked participants proceed. WaitArmed lets the scheduler observe
//     "everyone has arrived" without itself consuming a slot, and Release
//     lets it choose the exact moment of hand-off.
//
// Both shapes share one underlying mechanism: an atomic arrival counter
// gates an "armed" channel (closed once the target count is reached), and
// a second "release" channel gates departure. autoRelease simply means the
// arriver that arms the barrier also releases it.
package sync2
