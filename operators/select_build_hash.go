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

// SelectBuildHash fuses Select with HashJoin's build step: it evaluates
// predicate per chunk exactly as Select does, but instead of a later
// separate pass over the filtered view's Rows() to build the join hash
// table, it collects each chunk's surviving (buildCol) keys while the
// predicate bitmap is still in hand, then does one cheap sequential merge
// to assign logical row indices in Rows() order and insert them. This
// table becomes the build (right) side of a subsequent HashJoin without a
// second full scan.
func SelectBuildHash(pool *scheduler.Pool, lt *LazyTable, predicate *PredicateNode, buildCol string, opts OperatorOptions) (*LazyTable, error) {
	opts = opts.Normalize()
	table := lt.Table
	colIdx, err := table.ColumnIndex(buildCol)
	if err != nil {
		return nil, err
	}
	if table.Schema.Fields[colIdx].Type != storage.KindInt64 {
		return nil, annotateTypeMismatch(buildCol)
	}

	numChunks := len(table.Chunks)
	newFilter := make(storage.ChunkFilter, numChunks)
	partialKeys := make([][]int64, numChunks)

	batch := opts.BatchSize(numChunks, pool.Workers())
	var tasks []scheduler.Task
	for start := 0; start < numChunks; start += batch {
		end := start + batch
		if end > numChunks {
			end = numChunks
		}
		start, end := start, end
		tasks = append(tasks, func() error {
			for ci := start; ci < end; ci++ {
				chunk := table.Chunks[ci]
				bm, err := predicate.Evaluate(table, chunk)
				if err != nil {
					return err
				}
				bm = intersectWithExisting(lt, ci, bm, chunk.NumRows)
				newFilter[ci] = bm

				col := chunk.Column(colIdx)
				var keys []int64
				for row := 0; row < chunk.NumRows; row++ {
					if bm.Get(row) && col.Valid(row) {
						keys = append(keys, col.Int64At(row))
					}
				}
				partialKeys[ci] = keys
			}
			return nil
		})
	}
	if err := pool.SpawnAndWait(tasks...); err != nil {
		return nil, err
	}

	total := 0
	for _, keys := range partialKeys {
		total += len(keys)
	}
	ht := NewJoinHashTable(total)
	var logical uint32
	for _, keys := range partialKeys {
		for _, k := range keys {
			ht.Insert(k, logical)
			logical++
		}
	}

	return &LazyTable{Table: table, Filter: newFilter, HashTable: ht}, nil
}
