// Command loadgen replays a request file through a running scheduler's
// admission listener. It is the one concrete (and explicitly out-of-scope)
// producer of the "ordered stream of ClientMessages" the scheduler core
// otherwise assumes arrives from an upstream consensus/delivery layer;
// it exists only so the module is runnable end-to-end locally, not as
// part of the scheduler core itself.
package main
