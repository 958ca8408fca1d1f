package main

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// sampler decides whether a given request's latency gets printed, driven
// by the print_percentage configuration field. Hashing the request ID
// rather than counting every Nth request keeps the decision stable across
// reordering or retries, the same role xxhash plays as a fast, well
// distributed hash elsewhere in this module.
type sampler struct {
	percentage int
}

func newSampler(percentage int) sampler {
	return sampler{percentage: percentage}
}

func (s sampler) shouldPrint(requestID int32) bool {
	if s.percentage <= 0 {
		return false
	}
	if s.percentage >= 100 {
		return true
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(requestID))
	h := xxhash.Sum64(b[:])
	return h%100 < uint64(s.percentage)
}
