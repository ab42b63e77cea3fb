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

// Select evaluates predicate over lt's current view and replaces its
// filter with a fresh per-chunk bitmap (spec §4.3 "Select operator
// contract"). The input's own filter/indices, if any, are folded in first
// so Select composes correctly on an already-restricted LazyTable.
func Select(pool *scheduler.Pool, lt *LazyTable, predicate *PredicateNode, opts OperatorOptions) (*LazyTable, error) {
	opts = opts.Normalize()
	table := lt.Table
	numChunks := len(table.Chunks)
	newFilter := make(storage.ChunkFilter, numChunks)

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
				bm, err := predicate.Evaluate(table, table.Chunks[ci])
				if err != nil {
					return err
				}
				newFilter[ci] = intersectWithExisting(lt, ci, bm, table.Chunks[ci].NumRows)
			}
			return nil
		})
	}
	if err := pool.SpawnAndWait(tasks...); err != nil {
		return nil, err
	}
	return &LazyTable{Table: table, Filter: newFilter, HashTable: lt.HashTable}, nil
}

// intersectWithExisting folds lt's prior filter/indices restriction for
// chunk ci into freshly computed bitmap bm, so a Select chained after a
// prior Select or Join only keeps rows that were already live.
func intersectWithExisting(lt *LazyTable, ci int, bm storage.Bitmap, numRows int) storage.Bitmap {
	switch {
	case lt.Filter != nil:
		return bm.And(lt.Filter[ci], numRows)
	case lt.Indices != nil:
		out := storage.NewBitmap(numRows)
		for i, gi := range lt.Indices {
			var chunkID uint16
			var localRow uint32
			if lt.IndexChunks != nil {
				chunkID = lt.IndexChunks[i]
				localRow = gi - uint32(lt.Table.Offsets()[chunkID])
			} else {
				chunkID, localRow = lt.Table.ResolveGlobalIndex(gi)
			}
			if int(chunkID) == ci && bm.Get(int(localRow)) {
				out.Set(int(localRow), true)
			}
		}
		return out
	default:
		return bm
	}
}
