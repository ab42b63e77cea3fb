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

import "github.com/pingcap/errors"

// MaxChunkRows is the fixed block size B from spec §3: chunks hold at most
// this many rows, and only the last chunk of a table may be partial.
const MaxChunkRows = 1 << 16

// Chunk is a contiguous row-batch: one Column per schema field. Chunks are
// immutable after insertion into a Table.
type Chunk struct {
	Columns []*Column
	NumRows int
}

// NewChunk builds a chunk from per-column data, validating that every
// column has the same row count.
func NewChunk(columns []*Column) (*Chunk, error) {
	if len(columns) == 0 {
		return &Chunk{Columns: columns}, nil
	}
	n := columns[0].Len()
	for i, c := range columns {
		if c.Len() != n {
			return nil, errors.Errorf("hustle: column %d has %d rows, column 0 has %d", i, c.Len(), n)
		}
	}
	if n > MaxChunkRows {
		return nil, errors.Errorf("hustle: chunk has %d rows, exceeds block size %d", n, MaxChunkRows)
	}
	return &Chunk{Columns: columns, NumRows: n}, nil
}

// Column returns the i-th column of the chunk.
func (c *Chunk) Column(i int) *Column { return c.Columns[i] }
