// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package operators

import (
	"runtime"

	"github.com/hustledb/hustle/util/logutil"
	"go.uber.org/zap"
)

// AggregateType selects between the two HashAggregate strategies (spec
// §6, design note §9 "tagged variant" instead of polymorphism).
type AggregateType int

const (
	// HashAgg is the two-phase local/global hash aggregate of spec §4.6,
	// the recommended default.
	HashAgg AggregateType = iota
	// ArrowAgg is the legacy single-phase aggregate kept only so
	// implementations can cross-check HashAgg output (spec §8 invariant 2).
	ArrowAgg
)

// OperatorOptions is the small config object recognized by operators
// (spec §6).
type OperatorOptions struct {
	// ParallelFactor multiplies hardware concurrency to compute batch
	// sizes in Select, SelectBuildHash, join probe, LIP probe, and
	// HashAggregate's local phase. storage.ApplyFilter and
	// storage.ApplyIndices do not read it. Default 1.0; a value <= 0 is
	// clamped (spec §7 "Unsupported operator option").
	ParallelFactor float64
	// AggregateType chooses the aggregate strategy.
	AggregateType AggregateType
}

// DefaultOperatorOptions returns spec-mandated defaults.
func DefaultOperatorOptions() OperatorOptions {
	return OperatorOptions{ParallelFactor: 1.0, AggregateType: HashAgg}
}

// Normalize returns a copy of o with invalid fields clamped, logging when
// a clamp happens; o itself is unchanged.
func (o OperatorOptions) Normalize() OperatorOptions {
	if o.ParallelFactor <= 0 {
		logutil.BgLogger().Warn("operator option parallel_factor <= 0, clamping to 1.0",
			zap.Float64("given", o.ParallelFactor))
		o.ParallelFactor = 1.0
	}
	return o
}

// BatchSize computes num_chunks/(threads*parallel_factor), the formula
// spec §4.4/§4.5 use to size parallel probe/scan batches, floored at 1.
func (o OperatorOptions) BatchSize(numChunks, threads int) int {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	denom := float64(threads) * o.ParallelFactor
	if denom <= 0 {
		denom = float64(threads)
	}
	size := int(float64(numChunks) / denom)
	if size < 1 {
		size = 1
	}
	return size
}
