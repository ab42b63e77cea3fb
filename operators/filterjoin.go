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
	"sort"
	"sync"

	"github.com/hustledb/hustle/bloom"
	"github.com/hustledb/hustle/scheduler"
	"github.com/hustledb/hustle/storage"
)

// LipDimension describes one dimension table in a FilterJoin/LIP star join
// (spec §4.5): FactCol is the fact table's foreign-key column, DimCol is
// the dimension's primary key column that Select has already filtered.
type LipDimension struct {
	Result  *OperatorResult
	LT      *LazyTable
	FactCol string
	DimCol  string
}

// dimProbeState is one dimension's build-phase artifacts plus the
// bookkeeping FilterJoin's adaptive reordering (spec step 3) needs.
type dimProbeState struct {
	dim      LipDimension
	factColI int
	dimColI  int
	bf       *bloom.Filter
	ht       *JoinHashTable
}

// lipOrder is the shared, mutex-guarded probe order updated after every
// batch (spec §4.5 step 3: "Sort the filter list by ascending hit rate").
// Concurrent batches may race on a stale read of the order; that is
// accepted per spec ("only throughput", not correctness).
type lipOrder struct {
	mu    sync.Mutex
	order []int // indices into states, current probe order
}

func newLipOrder(n int) *lipOrder {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return &lipOrder{order: order}
}

func (lo *lipOrder) snapshot() []int {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	out := make([]int, len(lo.order))
	copy(out, lo.order)
	return out
}

// reorder re-sorts by ascending hit rate; untested filters (HitRate==1.0)
// sort last, matching bloom.Filter.HitRate's documented default.
func (lo *lipOrder) reorder(states []*dimProbeState) {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	sort.SliceStable(lo.order, func(a, b int) bool {
		return states[lo.order[a]].bf.HitRate() < states[lo.order[b]].bf.HitRate()
	})
}

// FilterJoin pre-filters factLT by probing a Bloom filter per dimension
// (built over that dimension's already-Select'd PK column), confirming
// each bloom hit against a real hash table so the emitted indices are
// exact, and computes every join's indices in one fused pass (spec §4.5).
func FilterJoin(pool *scheduler.Pool, factResult *OperatorResult, factLT *LazyTable, dims []LipDimension, opts OperatorOptions) (*OperatorResult, error) {
	opts = opts.Normalize()

	states := make([]*dimProbeState, len(dims))
	buildTasks := make([]scheduler.Task, len(dims))
	for i, d := range dims {
		i, d := i, d
		buildTasks[i] = func() error {
			factColI, err := factLT.Table.ColumnIndex(d.FactCol)
			if err != nil {
				return err
			}
			dimColI, err := d.LT.Table.ColumnIndex(d.DimCol)
			if err != nil {
				return err
			}
			if factLT.Table.Schema.Fields[factColI].Type != storage.KindInt64 ||
				d.LT.Table.Schema.Fields[dimColI].Type != storage.KindInt64 {
				return annotateTypeMismatch(d.FactCol + "=" + d.DimCol)
			}
			rows := d.LT.Rows()
			bf := bloom.New(len(rows), 0.01)
			ht := NewJoinHashTable(len(rows))
			for j, rid := range rows {
				col := d.LT.Table.Chunks[rid.ChunkID].Column(dimColI)
				if !col.Valid(int(rid.LocalRow)) {
					continue
				}
				key := col.Int64At(int(rid.LocalRow))
				bf.Insert(key)
				ht.Insert(key, uint32(j))
			}
			states[i] = &dimProbeState{dim: d, factColI: factColI, dimColI: dimColI, bf: bf, ht: ht}
			return nil
		}
	}
	if err := pool.SpawnAndWait(buildTasks...); err != nil {
		return nil, err
	}

	order := newLipOrder(len(states))

	factRows := factLT.Rows()
	numChunks := len(factLT.Table.Chunks)
	chunksPerBatch := opts.BatchSize(numChunks, pool.Workers())
	batchRows := rowsPerChunkBatch(factLT, chunksPerBatch)
	numBatches := 0
	if batchRows > 0 {
		numBatches = (len(factRows) + batchRows - 1) / batchRows
	}
	if numBatches < 1 {
		numBatches = 1
	}
	bsz := (len(factRows) + numBatches - 1) / numBatches
	if bsz < 1 {
		bsz = 1
	}

	partialFact := make([][]uint32, numBatches)
	partialDims := make([][][]uint32, numBatches)
	var tasks []scheduler.Task
	for bi := 0; bi < numBatches; bi++ {
		lo := bi * bsz
		hi := lo + bsz
		if hi > len(factRows) {
			hi = len(factRows)
		}
		lo, hi, bi := lo, hi, bi
		tasks = append(tasks, func() error {
			probeOrder := order.snapshot()
			var factK []uint32
			dimKs := make([][]uint32, len(states))
			matched := make([]uint32, len(states))
			for i := lo; i < hi; i++ {
				rid := factRows[i]
				ok := true
				for _, si := range probeOrder {
					st := states[si]
					col := factLT.Table.Chunks[rid.ChunkID].Column(st.factColI)
					if !col.Valid(int(rid.LocalRow)) {
						ok = false
						st.bf.RecordProbe(false)
						break
					}
					key := col.Int64At(int(rid.LocalRow))
					passedBloom := st.bf.Test(key)
					st.bf.RecordProbe(passedBloom)
					if !passedBloom {
						ok = false
						break
					}
					hits := st.ht.Lookup(key)
					if len(hits) == 0 {
						ok = false
						break
					}
					matched[si] = hits[0]
				}
				if !ok {
					continue
				}
				factK = append(factK, uint32(i))
				for si := range states {
					dimKs[si] = append(dimKs[si], matched[si])
				}
			}
			partialFact[bi] = factK
			partialDims[bi] = dimKs
			order.reorder(states)
			return nil
		})
	}
	if err := pool.SpawnAndWait(tasks...); err != nil {
		return nil, err
	}

	var factKAll []uint32
	dimKAll := make([][]uint32, len(states))
	for bi := 0; bi < len(partialFact); bi++ {
		factKAll = append(factKAll, partialFact[bi]...)
		for si := range states {
			if partialDims[bi] != nil {
				dimKAll[si] = append(dimKAll[si], partialDims[bi][si]...)
			}
		}
	}

	out := &OperatorResult{}
	for _, lt := range factResult.Tables {
		out.Tables = append(out.Tables, composeViaK(lt, factKAll))
	}
	for si, st := range states {
		for _, lt := range st.dim.Result.Tables {
			out.Tables = append(out.Tables, composeViaK(lt, dimKAll[si]))
		}
	}
	return out, nil
}
