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

// OperatorResult is the ordered list of LazyTables in flight between
// operators (spec §3 "OperatorResult"). Append semantics: downstream
// operators see every LazyTable upstream saw, plus whatever new ones they
// add.
type OperatorResult struct {
	Tables []*LazyTable
}

// NewOperatorResult wraps the given LazyTables, in order.
func NewOperatorResult(tables ...*LazyTable) *OperatorResult {
	return &OperatorResult{Tables: append([]*LazyTable(nil), tables...)}
}

// Append adds lt to the end of the result, returning the same
// OperatorResult for chaining.
func (r *OperatorResult) Append(lt *LazyTable) *OperatorResult {
	r.Tables = append(r.Tables, lt)
	return r
}

// Merge concatenates the LazyTables of other after r's own, used by the
// planner when two join components' plans combine (spec §4.8 step 4).
func (r *OperatorResult) Merge(other *OperatorResult) *OperatorResult {
	out := &OperatorResult{Tables: append([]*LazyTable(nil), r.Tables...)}
	out.Tables = append(out.Tables, other.Tables...)
	return out
}

// Find returns the LazyTable wrapping table, or nil.
func (r *OperatorResult) Find(table *storage.Table) *LazyTable {
	for _, lt := range r.Tables {
		if lt.Table == table {
			return lt
		}
	}
	return nil
}

// ColumnReference names a projection: a column of a specific LazyTable, or
// (when Table is nil) a virtual/aggregate output named ColName (spec §6).
type ColumnReference struct {
	Table   *LazyTable
	ColName string
}

// Materialize builds a concrete Table from refs, resolving each reference
// either through its LazyTable's filter/indices or, for aggregate-output
// references (Table == nil), by name from virtual (spec §6 "materialize
// function ... returns a concrete Table").
func Materialize(pool *scheduler.Pool, name string, refs []ColumnReference, virtual map[string]storage.Vector) (*storage.Table, error) {
	fields := make([]storage.Field, len(refs))
	vectors := make([]storage.Vector, len(refs))
	for i, ref := range refs {
		if ref.Table == nil {
			v, ok := virtual[ref.ColName]
			if !ok {
				return nil, errors.Annotatef(ErrMissingColumn, "virtual column %q", ref.ColName)
			}
			fields[i] = storage.Field{Name: ref.ColName, Type: v.Kind()}
			vectors[i] = v
			continue
		}
		colIdx, err := ref.Table.Table.ColumnIndex(ref.ColName)
		if err != nil {
			return nil, err
		}
		v, err := ref.Table.MaterializeColumn(pool, colIdx)
		if err != nil {
			return nil, err
		}
		fields[i] = storage.Field{Name: ref.ColName, Type: v.Kind()}
		vectors[i] = v
	}

	return buildChunkedTable(name, fields, vectors)
}

// buildChunkedTable assembles fields/vectors into a Table, splitting at
// storage.MaxChunkRows boundaries (spec §3 "Chunk" size constraint). An
// empty vector list still produces one empty chunk, so a zero-row result
// remains a well-formed Table.
func buildChunkedTable(name string, fields []storage.Field, vectors []storage.Vector) (*storage.Table, error) {
	schema := storage.NewSchema(fields...)
	out := storage.NewTable(name, schema)
	total := 0
	if len(vectors) > 0 {
		total = vectors[0].Len()
	}
	for start := 0; start < total || (total == 0 && start == 0); start += storage.MaxChunkRows {
		end := start + storage.MaxChunkRows
		if end > total {
			end = total
		}
		cols := make([]*storage.Column, len(vectors))
		for i, v := range vectors {
			cols[i] = storage.NewColumn(v.Slice(start, end))
		}
		chunk, err := storage.NewChunk(cols)
		if err != nil {
			return nil, err
		}
		out.AppendChunk(chunk)
		if total == 0 {
			break
		}
	}
	return out, nil
}
