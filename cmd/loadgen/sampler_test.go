package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSamplerZeroPercentNeverPrints(t *testing.T) {
	s := newSampler(0)
	for id := int32(0); id < 50; id++ {
		assert.False(t, s.shouldPrint(id))
	}
}

func TestSamplerHundredPercentAlwaysPrints(t *testing.T) {
	s := newSampler(100)
	for id := int32(0); id < 50; id++ {
		assert.True(t, s.shouldPrint(id))
	}
}

func TestSamplerIsDeterministicPerID(t *testing.T) {
	s := newSampler(37)
	first := s.shouldPrint(12345)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.shouldPrint(12345))
	}
}
