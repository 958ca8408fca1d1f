package main

import (
	"fmt"

	"github.com/dreamware/keypart/internal/partition"
)

// choosePartitioner maps the configured repartition_method to its
// implementation.
func choosePartitioner(method partition.Method, kahipBinary string) (partition.Partitioner, error) {
	switch method {
	case partition.MethodRoundRobin:
		return partition.NewRoundRobin(), nil
	case partition.MethodFennel:
		return partition.NewFennel(), nil
	case partition.MethodReFennel:
		return partition.NewReFennel(), nil
	case partition.MethodMETIS:
		return partition.NewMETIS(0), nil
	case partition.MethodKaHIP:
		k := partition.NewKaHIP()
		if kahipBinary != "" {
			k.BinaryPath = kahipBinary
		}
		return k, nil
	default:
		return nil, fmt.Errorf("cmd/scheduler: unknown repartition_method %q", method)
	}
}
