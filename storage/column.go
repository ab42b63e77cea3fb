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

// Column is one typed buffer plus its optional validity bitmap (spec §3
// "Chunk"). A nil Validity means every row is valid.
type Column struct {
	Data     Vector
	Validity Bitmap
}

// NewColumn wraps data with an all-valid column (no nulls).
func NewColumn(data Vector) *Column {
	return &Column{Data: data}
}

// Valid reports whether row i is non-null.
func (c *Column) Valid(i int) bool {
	return c.Validity == nil || c.Validity.Get(i)
}

// Kind returns the column's physical type.
func (c *Column) Kind() Kind { return c.Data.Kind() }

// Len returns the number of rows in this column.
func (c *Column) Len() int { return c.Data.Len() }

// Int64At reads a KindInt64 column's value at i, panicking on type
// mismatch so callers who already checked Kind() get a flat loop.
func (c *Column) Int64At(i int) int64 { return c.Data.(Int64Vector)[i] }

// BytesAt reads a KindString/KindFixedBinary column's value at i.
func (c *Column) BytesAt(i int) []byte { return c.Data.(BytesVector)[i] }
