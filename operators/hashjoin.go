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
	"github.com/hustledb/hustle/scheduler"
	"github.com/hustledb/hustle/storage"
)

// HashJoin equality-joins leftLT (a member of leftResult) against rightLT
// (a member of rightResult) on one int64 column each (spec §4.4). It
// returns a merged OperatorResult in which leftLT, rightLT, and every
// sibling LazyTable that shared a table with either of them have had
// their indices recomposed against the join's surviving rows
// (back-propagation, spec §4.4 step 5).
func HashJoin(pool *scheduler.Pool, leftResult *OperatorResult, leftLT *LazyTable, leftCol string,
	rightResult *OperatorResult, rightLT *LazyTable, rightCol string, opts OperatorOptions) (*OperatorResult, error) {
	opts = opts.Normalize()

	leftColIdx, err := leftLT.Table.ColumnIndex(leftCol)
	if err != nil {
		return nil, err
	}
	rightColIdx, err := rightLT.Table.ColumnIndex(rightCol)
	if err != nil {
		return nil, err
	}
	if leftLT.Table.Schema.Fields[leftColIdx].Type != storage.KindInt64 ||
		rightLT.Table.Schema.Fields[rightColIdx].Type != storage.KindInt64 {
		return nil, annotateTypeMismatch(leftCol + "=" + rightCol)
	}

	leftRows := leftLT.Rows()
	if len(leftRows) == 0 {
		return backPropagateAll(leftResult, rightResult, nil, nil), nil
	}

	ht := rightLT.HashTable
	if ht == nil {
		ht = buildJoinHashTable(rightLT, rightColIdx)
	}

	kLeft, kRight, err := probeHashJoin(pool, leftLT, leftColIdx, leftRows, ht, opts)
	if err != nil {
		return nil, err
	}
	return backPropagateAll(leftResult, rightResult, kLeft, kRight), nil
}

// buildJoinHashTable inserts every surviving row of buildLT's column
// colIdx as key -> logical row index (spec §4.4 step 2). Duplicates
// accumulate; null keys are never inserted so they never match (spec
// invariant "Null keys never match").
func buildJoinHashTable(buildLT *LazyTable, colIdx int) *JoinHashTable {
	rows := buildLT.Rows()
	ht := NewJoinHashTable(len(rows))
	for j, rid := range rows {
		col := buildLT.Table.Chunks[rid.ChunkID].Column(colIdx)
		if !col.Valid(int(rid.LocalRow)) {
			continue
		}
		ht.Insert(col.Int64At(int(rid.LocalRow)), uint32(j))
	}
	return ht
}

// probeHashJoin partitions probeRows into chunk-sized batches (spec §4.4
// step 3) and, per batch, looks up each row's key in ht, emitting a
// (leftLogicalIdx, rightLogicalIdx) pair per match — a Cartesian product
// for duplicate keys on either side. Each batch writes into its own
// pre-sized slice, avoiding a shared mutex (spec step 3 "avoiding a global
// mutex"); batches are concatenated in order at the end (step 4
// "Assemble"), which is also probe-row order since batches partition
// probeRows contiguously.
func probeHashJoin(pool *scheduler.Pool, probeLT *LazyTable, colIdx int, probeRows []RecordID, ht *JoinHashTable, opts OperatorOptions) (kLeft, kRight []uint32, err error) {
	numChunks := len(probeLT.Table.Chunks)
	chunksPerBatch := opts.BatchSize(numChunks, pool.Workers())
	numBatches := (len(probeRows) + rowsPerChunkBatch(probeLT, chunksPerBatch) - 1) / rowsPerChunkBatch(probeLT, chunksPerBatch)
	if numBatches < 1 {
		numBatches = 1
	}
	batchRows := (len(probeRows) + numBatches - 1) / numBatches

	partialLeft := make([][]uint32, numBatches)
	partialRight := make([][]uint32, numBatches)
	tasks := make([]scheduler.Task, 0, numBatches)
	b := 0
	for lo := 0; lo < len(probeRows); lo += batchRows {
		hi := lo + batchRows
		if hi > len(probeRows) {
			hi = len(probeRows)
		}
		lo, hi, bi := lo, hi, b
		b++
		tasks = append(tasks, func() error {
			var pl, pr []uint32
			for i := lo; i < hi; i++ {
				rid := probeRows[i]
				col := probeLT.Table.Chunks[rid.ChunkID].Column(colIdx)
				if !col.Valid(int(rid.LocalRow)) {
					continue
				}
				key := col.Int64At(int(rid.LocalRow))
				for _, j := range ht.Lookup(key) {
					pl = append(pl, uint32(i))
					pr = append(pr, j)
				}
			}
			partialLeft[bi] = pl
			partialRight[bi] = pr
			return nil
		})
	}
	if err := pool.SpawnAndWait(tasks...); err != nil {
		return nil, nil, err
	}
	for bi := range partialLeft {
		kLeft = append(kLeft, partialLeft[bi]...)
		kRight = append(kRight, partialRight[bi]...)
	}
	return kLeft, kRight, nil
}

// rowsPerChunkBatch converts a chunk-count batch size into an approximate
// row-count batch size, using the table's average rows per chunk; probeLT
// may be a filtered/indexed view so this is an estimate, not exact.
func rowsPerChunkBatch(lt *LazyTable, chunksPerBatch int) int {
	numChunks := len(lt.Table.Chunks)
	if numChunks == 0 {
		return 1
	}
	avgRowsPerChunk := lt.Table.TotalRows / numChunks
	if avgRowsPerChunk < 1 {
		avgRowsPerChunk = 1
	}
	size := avgRowsPerChunk * chunksPerBatch
	if size < 1 {
		size = 1
	}
	return size
}

// backPropagateAll recomposes every LazyTable of leftResult against kLeft
// and every LazyTable of rightResult against kRight (spec §4.4 step 5),
// then merges the two recomposed OperatorResults.
func backPropagateAll(leftResult *OperatorResult, rightResult *OperatorResult, kLeft, kRight []uint32) *OperatorResult {
	out := &OperatorResult{}
	for _, lt := range leftResult.Tables {
		out.Tables = append(out.Tables, composeViaK(lt, kLeft))
	}
	for _, lt := range rightResult.Tables {
		out.Tables = append(out.Tables, composeViaK(lt, kRight))
	}
	return out
}

// composeViaK rebuilds sibling's indices by looking up, for every output
// position, which of sibling's own logical rows survived (spec §4.4 step
// 5's take(prior_indices, new_indices_of_indices), generalized: a table
// that was previously unjoined has sibling.Rows()[k] resolve straight to
// its own physical rows, so the same composition handles both cases
// uniformly).
func composeViaK(sibling *LazyTable, k []uint32) *LazyTable {
	if len(k) == 0 {
		return &LazyTable{Table: sibling.Table, Indices: []uint32{}, IndexChunks: []uint16{}}
	}
	rows := sibling.Rows()
	offsets := sibling.Table.Offsets()
	newIndices := make([]uint32, len(k))
	newChunks := make([]uint16, len(k))
	for oi, ki := range k {
		rid := rows[ki]
		newIndices[oi] = uint32(offsets[rid.ChunkID]) + rid.LocalRow
		newChunks[oi] = rid.ChunkID
	}
	return &LazyTable{Table: sibling.Table, Indices: newIndices, IndexChunks: newChunks}
}
