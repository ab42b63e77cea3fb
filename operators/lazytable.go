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
	"github.com/pingcap/errors"

	"github.com/hustledb/hustle/scheduler"
	"github.com/hustledb/hustle/storage"
)

// RecordID is a physical address inside a chunked column: which chunk, and
// the row within that chunk (spec §3, GLOSSARY).
type RecordID struct {
	ChunkID  uint16
	LocalRow uint32
}

// JoinHashTable is the multi-valued build-side map of spec §3/§4.4: one key
// maps to every logical row index (the row's position in the build side's
// own Rows() order, not a physical RecordID) that produced it, duplicates
// preserved. Keying on the logical index lets composeViaK resolve a match
// back to a physical row the same way for every sibling LazyTable sharing
// the build side's OperatorResult, joined or not.
type JoinHashTable struct {
	buckets map[int64][]uint32
}

// NewJoinHashTable preallocates a map sized for the post-filter row count
// (spec §4.4 step 2: "Size the map using the post-filter row count").
func NewJoinHashTable(sizeHint int) *JoinHashTable {
	return &JoinHashTable{buckets: make(map[int64][]uint32, sizeHint)}
}

// Insert records one more occurrence of key at logical row index j.
func (h *JoinHashTable) Insert(key int64, j uint32) {
	h.buckets[key] = append(h.buckets[key], j)
}

// Lookup returns every logical row index inserted under key.
func (h *JoinHashTable) Lookup(key int64) []uint32 {
	return h.buckets[key]
}

// LazyTable is the (table, filter, indices, index_chunks, hash_table)
// quintuple that flows between operators without materializing an
// intermediate table (spec §3 "LazyTable", GLOSSARY).
type LazyTable struct {
	Table       *storage.Table
	Filter      storage.ChunkFilter // per-chunk boolean bitmap, or nil
	Indices     []uint32            // flat global row indices, or nil
	IndexChunks []uint16            // parallel chunk ids for Indices, or nil
	HashTable   *JoinHashTable       // optional prebuilt join build side
}

// NewLazyTable wraps table with no filter/indices: the full base relation.
func NewLazyTable(table *storage.Table) *LazyTable {
	return &LazyTable{Table: table}
}

// Validate checks the LazyTable invariants from spec §3:
// (i) at most one of Filter and Indices is non-empty;
// (ii) IndexChunks, if present, has the same length as Indices;
// (iii) Filter, if present, has one bitmap per table chunk.
func (lt *LazyTable) Validate() error {
	if len(lt.Filter) > 0 && len(lt.Indices) > 0 {
		return errors.New("hustle: LazyTable has both filter and indices")
	}
	if lt.IndexChunks != nil && len(lt.IndexChunks) != len(lt.Indices) {
		return errors.New("hustle: LazyTable index_chunks length mismatch")
	}
	if lt.Filter != nil && len(lt.Filter) != len(lt.Table.Chunks) {
		return errors.New("hustle: LazyTable filter chunk count mismatch")
	}
	return nil
}

// RowCount returns the number of rows this view currently selects.
func (lt *LazyTable) RowCount() int {
	switch {
	case lt.Indices != nil:
		return len(lt.Indices)
	case lt.Filter != nil:
		n := 0
		for ci, bm := range lt.Filter {
			n += bm.PopCount(lt.Table.Chunks[ci].NumRows)
		}
		return n
	default:
		return lt.Table.TotalRows
	}
}

// MaterializeColumn resolves column colIdx through this view's filter or
// indices into a flat concrete Vector (spec §4.4 step 1 "Materialize").
func (lt *LazyTable) MaterializeColumn(pool *scheduler.Pool, colIdx int) (storage.Vector, error) {
	switch {
	case lt.Indices != nil:
		return storage.ApplyIndices(pool, lt.Table, colIdx, lt.Indices, lt.IndexChunks)
	case lt.Filter != nil:
		return storage.ApplyFilter(pool, lt.Table, colIdx, lt.Filter)
	default:
		return storage.FlattenColumn(lt.Table, colIdx), nil
	}
}

// MaterializeInt64Column is MaterializeColumn specialized (and type
// checked) for join/group key columns, which spec §3 restricts to int64.
func (lt *LazyTable) MaterializeInt64Column(pool *scheduler.Pool, colIdx int) (storage.Int64Vector, error) {
	v, err := lt.MaterializeColumn(pool, colIdx)
	if err != nil {
		return nil, err
	}
	iv, ok := v.(storage.Int64Vector)
	if !ok {
		return nil, errors.Annotatef(ErrTypeMismatch, "column %d is %s, want int64", colIdx, v.Kind())
	}
	return iv, nil
}

// recordIDAt resolves the RecordID this view's row i corresponds to in the
// backing table, needed by HashAggregate's tuple_map witnesses and by
// HashJoin's build step (spec §4.4 step 2, §4.6).
func (lt *LazyTable) recordIDAt(i int) RecordID {
	switch {
	case lt.Indices != nil:
		if lt.IndexChunks != nil {
			return RecordID{ChunkID: lt.IndexChunks[i], LocalRow: lt.Indices[i] - uint32(lt.Table.Offsets()[lt.IndexChunks[i]])}
		}
		chunkID, localRow := lt.Table.ResolveGlobalIndex(lt.Indices[i])
		return RecordID{ChunkID: chunkID, LocalRow: localRow}
	case lt.Filter != nil:
		return lt.recordIDAtFiltered(i)
	default:
		chunkID, localRow := lt.Table.ResolveGlobalIndex(uint32(i))
		return RecordID{ChunkID: chunkID, LocalRow: localRow}
	}
}

func (lt *LazyTable) recordIDAtFiltered(i int) RecordID {
	seen := 0
	for ci, bm := range lt.Filter {
		rows := lt.Table.Chunks[ci].NumRows
		for row := 0; row < rows; row++ {
			if bm.Get(row) {
				if seen == i {
					return RecordID{ChunkID: uint16(ci), LocalRow: uint32(row)}
				}
				seen++
			}
		}
	}
	panic("hustle: recordIDAtFiltered index out of range")
}

// Rows exposes every surviving RecordID in this view's row-major order, for
// operators that need to walk the view once (build side of HashJoin, LIP
// dimension build, HashAggregate local phase).
func (lt *LazyTable) Rows() []RecordID {
	n := lt.RowCount()
	out := make([]RecordID, 0, n)
	switch {
	case lt.Indices != nil:
		for i := range lt.Indices {
			out = append(out, lt.recordIDAt(i))
		}
	case lt.Filter != nil:
		for ci, bm := range lt.Filter {
			rows := lt.Table.Chunks[ci].NumRows
			for row := 0; row < rows; row++ {
				if bm.Get(row) {
					out = append(out, RecordID{ChunkID: uint16(ci), LocalRow: uint32(row)})
				}
			}
		}
	default:
		for ci, c := range lt.Table.Chunks {
			for row := 0; row < c.NumRows; row++ {
				out = append(out, RecordID{ChunkID: uint16(ci), LocalRow: uint32(row)})
			}
		}
	}
	return out
}

// ValueAt reads column colIdx at physical address id, returned as a
// one-element vector.
func (lt *LazyTable) ValueAt(colIdx int, id RecordID) storage.Vector {
	col := lt.Table.Chunks[id.ChunkID].Column(colIdx)
	return col.Data.Slice(int(id.LocalRow), int(id.LocalRow)+1)
}
