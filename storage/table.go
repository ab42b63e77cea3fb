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
	"sort"

	"github.com/pingcap/errors"
)

// Table is an ordered sequence of chunks sharing one schema (spec §3).
// Tables are created once at load and live for the query's duration; the
// on-disk/over-wire loader that produces one is out of scope (spec §6).
type Table struct {
	Name      string
	Schema    *Schema
	Chunks    []*Chunk
	TotalRows int

	offsets []uint64 // lazily built chunk-offset table, length len(Chunks)+1
}

// NewTable creates an empty table with the given schema.
func NewTable(name string, schema *Schema) *Table {
	return &Table{Name: name, Schema: schema}
}

// AppendChunk adds a chunk to the table. Only the last chunk of a table may
// be partial (spec §3 invariant); AppendChunk does not itself enforce that
// an earlier "full" chunk stays full once more chunks are appended, since
// loaders build tables append-only and never insert in the middle.
func (t *Table) AppendChunk(c *Chunk) {
	t.Chunks = append(t.Chunks, c)
	t.TotalRows += c.NumRows
	t.offsets = nil
}

// ColumnIndex resolves a field name to its schema position.
func (t *Table) ColumnIndex(name string) (int, error) {
	idx := t.Schema.IndexOf(name)
	if idx < 0 {
		return 0, errors.Annotatef(ErrMissingColumn, "table %s, column %s", t.Name, name)
	}
	return idx, nil
}

// Offsets returns the chunk-offset table: cumulative row counts, length
// len(Chunks)+1, Offsets()[0]==0 (spec §3 "Chunk-offset table").
func (t *Table) Offsets() []uint64 {
	if t.offsets != nil {
		return t.offsets
	}
	offsets := make([]uint64, len(t.Chunks)+1)
	for i, c := range t.Chunks {
		offsets[i+1] = offsets[i] + uint64(c.NumRows)
	}
	t.offsets = offsets
	return offsets
}

// ResolveGlobalIndex maps a global row index to (chunk id, local row) via
// binary search in the chunk-offset table (spec §3: used by apply_indices
// "otherwise via binary search in chunk-offsets" when index_chunks is
// absent).
func (t *Table) ResolveGlobalIndex(globalIdx uint32) (chunkID uint16, localRow uint32) {
	offsets := t.Offsets()
	// the last chunk containing globalIdx: offsets[c] <= globalIdx < offsets[c+1]
	c := sort.Search(len(offsets), func(i int) bool { return offsets[i] > uint64(globalIdx) }) - 1
	return uint16(c), globalIdx - uint32(offsets[c])
}

// Column fetches the concrete Column for colIdx at chunk ci.
func (t *Table) Column(ci, colIdx int) *Column {
	return t.Chunks[ci].Columns[colIdx]
}
