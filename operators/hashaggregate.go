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
	"bytes"
	"math"
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/hustledb/hustle/scheduler"
	"github.com/hustledb/hustle/storage"
)

// AggFunc is one of the aggregate functions spec §4.6 supports.
type AggFunc int

const (
	AggSum AggFunc = iota
	AggCount
	AggMean
)

// OrderKey is one ORDER BY key applied by HashAggregate's emit phase (spec
// §4.6 step 4). Ref.Table == nil means "sort by the aggregate output
// column".
type OrderKey struct {
	Ref  ColumnReference
	Desc bool
}

// HashAggregateSpec describes one `SELECT group-cols, f(agg) FROM ...
// GROUP BY group-cols ORDER BY order-cols` computation (spec §4.6).
// GroupBy and AggTable's rows must be row-aligned: logical row i of every
// GroupBy ref's Table and of AggTable must describe the same output tuple,
// which holds for any set of LazyTables sharing one OperatorResult.
type HashAggregateSpec struct {
	GroupBy []ColumnReference
	AggTable *LazyTable
	AggCol   string // ignored if AggExpr is set
	AggExpr  *Expr  // when set, evaluated per chunk instead of reading AggCol
	Func     AggFunc
	AggName  string
	OrderBy  []OrderKey
}

// localAgg is one local-phase task's private accumulators (spec §4.6 step
// 1: "Each task owns its private value_map, count_map, and tuple_map").
type localAgg struct {
	valueMap map[uint64]int64
	countMap map[uint64]int64 // MEAN only
	tupleMap map[uint64][]RecordID
}

// HashAggregate computes the two-phase local/global group aggregate of
// spec §4.6 and returns the finished output table (group-by columns
// followed by the aggregate column, per the declared ORDER BY).
func HashAggregate(pool *scheduler.Pool, spec HashAggregateSpec, opts OperatorOptions) (*storage.Table, error) {
	opts = opts.Normalize()

	groupColIdx := make([]int, len(spec.GroupBy))
	groupRows := make([][]RecordID, len(spec.GroupBy))
	for g, ref := range spec.GroupBy {
		ci, err := ref.Table.Table.ColumnIndex(ref.ColName)
		if err != nil {
			return nil, err
		}
		groupColIdx[g] = ci
		groupRows[g] = ref.Table.Rows()
	}

	aggColIdx := -1
	if spec.AggExpr == nil && spec.AggCol != "" {
		ci, err := spec.AggTable.Table.ColumnIndex(spec.AggCol)
		if err != nil {
			return nil, err
		}
		if spec.AggTable.Table.Schema.Fields[ci].Type != storage.KindInt64 {
			return nil, annotateTypeMismatch(spec.AggCol)
		}
		aggColIdx = ci
	}
	aggRows := spec.AggTable.Rows()

	n := len(aggRows)
	if len(groupRows) > 0 {
		n = len(groupRows[0])
	}

	numChunks := len(spec.AggTable.Table.Chunks)
	chunksPerBatch := opts.BatchSize(numChunks, pool.Workers())
	batchRows := rowsPerChunkBatch(spec.AggTable, chunksPerBatch)
	numBatches := (n + batchRows - 1) / batchRows
	if numBatches < 1 {
		numBatches = 1
	}
	if opts.AggregateType == ArrowAgg {
		// A single local task whose maps go through the same merge as
		// HashAgg's: same accumulation code as HashAgg's local phase, just
		// never split across batches, so the two strategies are free to
		// disagree only on parallelism, never on the maps they build.
		numBatches = 1
	}
	bsz := (n + numBatches - 1) / numBatches
	if bsz < 1 {
		bsz = 1
	}

	locals := make([]*localAgg, numBatches)
	var tasks []scheduler.Task
	for bi := 0; bi < numBatches; bi++ {
		lo := bi * bsz
		hi := lo + bsz
		if hi > n {
			hi = n
		}
		lo, hi, bi := lo, hi, bi
		tasks = append(tasks, func() error {
			local := &localAgg{
				valueMap: make(map[uint64]int64),
				tupleMap: make(map[uint64][]RecordID),
			}
			if spec.Func == AggMean {
				local.countMap = make(map[uint64]int64)
			}
			exprCache := make(map[uint16]storage.Int64Vector)
			for i := lo; i < hi; i++ {
				var seed uint64
				var witnesses []RecordID
				if len(spec.GroupBy) > 0 {
					witnesses = make([]RecordID, len(spec.GroupBy))
					for g := range spec.GroupBy {
						rid := groupRows[g][i]
						witnesses[g] = rid
						col := spec.GroupBy[g].Table.Table.Chunks[rid.ChunkID].Column(groupColIdx[g])
						seed = hashCombine(seed, hashValue(col, int(rid.LocalRow)))
					}
				}
				rid := aggRows[i]
				val, ok, err := aggregateValueAt(spec, aggColIdx, rid, exprCache)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if _, exists := local.tupleMap[seed]; !exists {
					local.tupleMap[seed] = witnesses
				}
				switch spec.Func {
				case AggCount:
					local.valueMap[seed]++
				case AggMean:
					local.valueMap[seed] += val
					local.countMap[seed]++
				default: // AggSum
					local.valueMap[seed] += val
				}
			}
			locals[bi] = local
			return nil
		})
	}
	if err := pool.SpawnAndWait(tasks...); err != nil {
		return nil, err
	}

	globalValue := make(map[uint64]int64)
	globalCount := make(map[uint64]int64)
	globalTuple := make(map[uint64][]RecordID)
	for _, local := range locals {
		for k, v := range local.valueMap {
			globalValue[k] += v
		}
		for k, v := range local.countMap {
			globalCount[k] += v
		}
		for k, w := range local.tupleMap {
			if _, exists := globalTuple[k]; !exists {
				globalTuple[k] = w
			}
		}
	}

	// Deterministic base order (spec §8 invariant 6: byte-identical output
	// across runs), independent of Go's randomized map iteration: the group
	// hash is itself a pure function of the group's values, so sorting by it
	// gives every run the same pre-ORDER-BY tiebreak.
	keys := make([]uint64, 0, len(globalValue))
	for k := range globalValue {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	for p := len(spec.OrderBy) - 1; p >= 0; p-- {
		ok := spec.OrderBy[p]
		less := orderComparator(spec, ok, globalValue, globalCount, globalTuple, groupColIdx)
		if ok.Desc {
			sort.SliceStable(keys, func(a, b int) bool { return less(keys[b], keys[a]) })
		} else {
			sort.SliceStable(keys, func(a, b int) bool { return less(keys[a], keys[b]) })
		}
	}

	groupVecs := make([]storage.Vector, len(spec.GroupBy))
	groupFields := make([]storage.Field, len(spec.GroupBy))
	for g, ref := range spec.GroupBy {
		kind := ref.Table.Table.Schema.Fields[groupColIdx[g]].Type
		groupVecs[g] = storage.NewVector(kind, len(keys))
		groupFields[g] = storage.Field{Name: ref.ColName, Type: kind}
	}

	var aggInt storage.Int64Vector
	var aggFloat storage.Float64Vector
	aggKind := storage.KindInt64
	if spec.Func == AggMean {
		aggKind = storage.KindFloat64
		aggFloat = make(storage.Float64Vector, 0, len(keys))
	} else {
		aggInt = make(storage.Int64Vector, 0, len(keys))
	}

	for _, k := range keys {
		witnesses := globalTuple[k]
		for g := range spec.GroupBy {
			rid := witnesses[g]
			col := spec.GroupBy[g].Table.Table.Chunks[rid.ChunkID].Column(groupColIdx[g])
			groupVecs[g] = groupVecs[g].AppendFrom(col.Data, int(rid.LocalRow))
		}
		switch spec.Func {
		case AggMean:
			aggFloat = append(aggFloat, float64(globalValue[k])/float64(globalCount[k]))
		default:
			aggInt = append(aggInt, globalValue[k])
		}
	}

	fields := append(groupFields, storage.Field{Name: spec.AggName, Type: aggKind})
	vectors := append(groupVecs, func() storage.Vector {
		if spec.Func == AggMean {
			return aggFloat
		}
		return aggInt
	}())

	return buildChunkedTable(spec.AggTable.Table.Name+"_agg", fields, vectors)
}

// aggregateValueAt reads the int64 aggregate input at rid, either directly
// from AggCol or by evaluating AggExpr over rid's chunk, caching the
// per-chunk expression result (spec §4.6 "expression aggregation"). The
// bool result is false when the row contributes nothing (null value).
func aggregateValueAt(spec HashAggregateSpec, aggColIdx int, rid RecordID, exprCache map[uint16]storage.Int64Vector) (int64, bool, error) {
	if spec.AggExpr != nil {
		vec, ok := exprCache[rid.ChunkID]
		if !ok {
			chunk := spec.AggTable.Table.Chunks[rid.ChunkID]
			v, err := spec.AggExpr.Evaluate(spec.AggTable.Table, chunk)
			if err != nil {
				return 0, false, err
			}
			vec = v
			exprCache[rid.ChunkID] = vec
		}
		return vec[rid.LocalRow], true, nil
	}
	if aggColIdx < 0 {
		return 0, true, nil // COUNT(*): every row contributes
	}
	col := spec.AggTable.Table.Chunks[rid.ChunkID].Column(aggColIdx)
	if !col.Valid(int(rid.LocalRow)) {
		return 0, false, nil
	}
	return col.Int64At(int(rid.LocalRow)), true, nil
}

// hashCombine folds next into seed (spec §4.6's exact formula), replacing
// the base-10-digit group-index encoding flagged as collision-prone in
// spec design note (c).
func hashCombine(seed, next uint64) uint64 {
	return seed ^ (next + 0x9e3779b9 + (seed << 6) + (seed >> 2))
}

// hashValue produces a 64-bit hash of column col's value at row i, 0 for
// null. Used only to build the composite group hash, never to distinguish
// the actual values (the tuple_map witness owns that job at emit time).
func hashValue(col *storage.Column, i int) uint64 {
	if !col.Valid(i) {
		return 0
	}
	switch v := col.Data.(type) {
	case storage.Int8Vector:
		return uint64(v[i])
	case storage.Int16Vector:
		return uint64(v[i])
	case storage.Int32Vector:
		return uint64(v[i])
	case storage.Int64Vector:
		return uint64(v[i])
	case storage.Uint8Vector:
		return uint64(v[i])
	case storage.Uint16Vector:
		return uint64(v[i])
	case storage.Uint32Vector:
		return uint64(v[i])
	case storage.Uint64Vector:
		return v[i]
	case storage.Float32Vector:
		return uint64(math.Float32bits(v[i]))
	case storage.Float64Vector:
		return math.Float64bits(v[i])
	case storage.BoolVector:
		if v[i] {
			return 1
		}
		return 0
	case storage.BytesVector:
		return murmur3.Sum64(v[i])
	default:
		return 0
	}
}

// orderComparator builds a less(ka, kb uint64) bool closure for one
// OrderKey, comparing either the aggregate value or one group-by column's
// witnessed value.
func orderComparator(spec HashAggregateSpec, ok OrderKey, valueMap, countMap map[uint64]int64, tupleMap map[uint64][]RecordID, groupColIdx []int) func(ka, kb uint64) bool {
	if ok.Ref.Table == nil {
		return func(ka, kb uint64) bool {
			if spec.Func == AggMean {
				a := float64(valueMap[ka]) / float64(countMap[ka])
				b := float64(valueMap[kb]) / float64(countMap[kb])
				return a < b
			}
			return valueMap[ka] < valueMap[kb]
		}
	}
	g := findGroupIndex(spec.GroupBy, ok.Ref)
	return func(ka, kb uint64) bool {
		wa := tupleMap[ka][g]
		wb := tupleMap[kb][g]
		colA := spec.GroupBy[g].Table.Table.Chunks[wa.ChunkID].Column(groupColIdx[g])
		colB := spec.GroupBy[g].Table.Table.Chunks[wb.ChunkID].Column(groupColIdx[g])
		return compareValues(colA, int(wa.LocalRow), colB, int(wb.LocalRow)) < 0
	}
}

func findGroupIndex(groupBy []ColumnReference, ref ColumnReference) int {
	for i, g := range groupBy {
		if g.Table == ref.Table && g.ColName == ref.ColName {
			return i
		}
	}
	return -1
}

// compareValues orders two same-kind column values, used only by
// HashAggregate's ORDER BY pass.
func compareValues(colA *storage.Column, i int, colB *storage.Column, j int) int {
	switch a := colA.Data.(type) {
	case storage.BytesVector:
		return bytes.Compare(a[i], colB.Data.(storage.BytesVector)[j])
	case storage.Float32Vector:
		return cmpFloat64(float64(a[i]), float64(colB.Data.(storage.Float32Vector)[j]))
	case storage.Float64Vector:
		return cmpFloat64(a[i], colB.Data.(storage.Float64Vector)[j])
	case storage.BoolVector:
		bv := colB.Data.(storage.BoolVector)[j]
		if a[i] == bv {
			return 0
		}
		if !a[i] {
			return -1
		}
		return 1
	default:
		return cmpInt64(signedOf(colA, i), signedOf(colB, j))
	}
}

func signedOf(col *storage.Column, i int) int64 {
	switch v := col.Data.(type) {
	case storage.Int8Vector:
		return int64(v[i])
	case storage.Int16Vector:
		return int64(v[i])
	case storage.Int32Vector:
		return int64(v[i])
	case storage.Int64Vector:
		return v[i]
	case storage.Uint8Vector:
		return int64(v[i])
	case storage.Uint16Vector:
		return int64(v[i])
	case storage.Uint32Vector:
		return int64(v[i])
	case storage.Uint64Vector:
		return int64(v[i])
	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
