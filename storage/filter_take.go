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

package storage

import (
	"github.com/pingcap/errors"

	"github.com/hustledb/hustle/scheduler"
)

// meanStringLenHint is a mean string-length estimate. ApplyFilter and
// ApplyIndices do not read it: a BytesVector is a slice of per-row byte
// slices, so output grows through append() without a manual byte arena.
const meanStringLenHint = 16

// ChunkFilter is the per-chunk boolean bitmap ChunkedArray from spec §3
// ("filter"): one Bitmap per table chunk, each aligned to that chunk's row
// count.
type ChunkFilter []Bitmap

// sliceSize is the target rows-per-task used to parallelize ApplyIndices.
// ApplyFilter does not slice by rows: it spawns one task per chunk.
const sliceSize = 30000

// ApplyFilter materializes column colIdx of table, keeping only rows whose
// filter bit is set, dispatching one sub-task per chunk to pool. Output
// row order equals input row-major order (spec §4.2).
func ApplyFilter(pool *scheduler.Pool, table *Table, colIdx int, filter ChunkFilter) (Vector, error) {
	if len(filter) != len(table.Chunks) {
		return nil, errors.Errorf("hustle: filter has %d chunks, table has %d", len(filter), len(table.Chunks))
	}
	kind := table.Schema.Fields[colIdx].Type
	partials := make([]Vector, len(table.Chunks))
	tasks := make([]scheduler.Task, len(table.Chunks))
	for ci := range table.Chunks {
		ci := ci
		tasks[ci] = func() error {
			chunk := table.Chunks[ci]
			col := chunk.Column(colIdx)
			bm := filter[ci]
			out := NewVector(kind, chunk.NumRows)
			for row := 0; row < chunk.NumRows; row++ {
				if bm.Get(row) {
					out = out.AppendFrom(col.Data, row)
				}
			}
			partials[ci] = out
			return nil
		}
	}
	if err := pool.SpawnAndWait(tasks...); err != nil {
		return nil, err
	}
	return concatVectors(kind, partials), nil
}

// ApplyIndices is the "take" operation: output[i] = values[indices[i]],
// resolving each global index to (chunk, local row) via indexChunks when
// present, otherwise via binary search in the table's chunk-offset table
// (spec §4.2).
func ApplyIndices(pool *scheduler.Pool, table *Table, colIdx int, indices []uint32, indexChunks []uint16) (Vector, error) {
	if len(indexChunks) != 0 && len(indexChunks) != len(indices) {
		return nil, errors.Errorf("hustle: indexChunks has %d entries, indices has %d", len(indexChunks), len(indices))
	}
	kind := table.Schema.Fields[colIdx].Type
	numBatches := (len(indices) + sliceSize - 1) / sliceSize
	if numBatches == 0 {
		return NewVector(kind, 0), nil
	}
	partials := make([]Vector, numBatches)
	tasks := make([]scheduler.Task, numBatches)
	for b := 0; b < numBatches; b++ {
		lo := b * sliceSize
		hi := lo + sliceSize
		if hi > len(indices) {
			hi = len(indices)
		}
		b := b
		tasks[b] = func() error {
			out := NewVector(kind, hi-lo)
			for i := lo; i < hi; i++ {
				var chunkID uint16
				var localRow uint32
				if indexChunks != nil {
					chunkID = indexChunks[i]
					localRow = indices[i] - uint32(table.Offsets()[chunkID])
				} else {
					chunkID, localRow = table.ResolveGlobalIndex(indices[i])
				}
				col := table.Column(int(chunkID), colIdx)
				out = out.AppendFrom(col.Data, int(localRow))
			}
			partials[b] = out
			return nil
		}
	}
	if err := pool.SpawnAndWait(tasks...); err != nil {
		return nil, err
	}
	return concatVectors(kind, partials), nil
}

// FlattenColumn concatenates every chunk's column colIdx into one flat
// vector, used when a LazyTable carries neither a filter nor indices (the
// "select everything" base case).
func FlattenColumn(table *Table, colIdx int) Vector {
	kind := table.Schema.Fields[colIdx].Type
	partials := make([]Vector, len(table.Chunks))
	for i, c := range table.Chunks {
		partials[i] = c.Column(colIdx).Data
	}
	return concatVectors(kind, partials)
}

// concatVectors concatenates partial vectors in slice order, restoring the
// deterministic global order the parallel sub-tasks produced out of order
// relative to each other's completion (spec §5: "the operator's Finish
// phase concatenates per-chunk outputs in chunk-index order").
func concatVectors(kind Kind, partials []Vector) Vector {
	total := 0
	for _, p := range partials {
		total += p.Len()
	}
	out := NewVector(kind, total)
	for _, p := range partials {
		for i := 0; i < p.Len(); i++ {
			out = out.AppendFrom(p, i)
		}
	}
	return out
}
