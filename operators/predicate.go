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
	"bytes"

	"github.com/hustledb/hustle/storage"
)

// CompareOp is the six ordered comparisons plus a dedicated BETWEEN
// variant. spec §4.3 calls out that the original model overloads the
// NOT_EQUAL slot for BETWEEN (REDESIGN FLAG (a)); here BETWEEN is its own
// tag, not an overload.
type CompareOp int

const (
	OpEQ CompareOp = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
	OpBetween // closed interval [Value, Value2]
)

// Scalar is a typed comparison literal (spec §6 "Predicate literal
// encoding").
type Scalar struct {
	Kind  storage.Kind
	Int   int64
	Uint  uint64
	Float float64
	Bytes []byte
	Bool  bool
}

// Int64Scalar builds an int64 comparison literal.
func Int64Scalar(v int64) Scalar { return Scalar{Kind: storage.KindInt64, Int: v} }

// StringScalar builds a string/fixed-binary comparison literal.
func StringScalar(v []byte) Scalar { return Scalar{Kind: storage.KindString, Bytes: v} }

// PredicateNode is a node of the predicate tree (spec §4.3): either a leaf
// Predicate or an internal Connective. Exactly one of the two is non-nil.
type PredicateNode struct {
	Leaf       *Predicate
	Connective *Connective
}

// Leaf wraps p as a PredicateNode.
func Leaf(p Predicate) *PredicateNode { return &PredicateNode{Leaf: &p} }

// And builds an AND connective over left and right.
func And(left, right *PredicateNode) *PredicateNode {
	return &PredicateNode{Connective: &Connective{Left: left, Right: right, Op: ConnAnd}}
}

// Or builds an OR connective over left and right.
func Or(left, right *PredicateNode) *PredicateNode {
	return &PredicateNode{Connective: &Connective{Left: left, Right: right, Op: ConnOr}}
}

// ConnOp is the connective operator of an internal predicate-tree node.
type ConnOp int

const (
	ConnAnd ConnOp = iota
	ConnOr
)

// Connective combines two predicate subtrees.
type Connective struct {
	Left, Right *PredicateNode
	Op          ConnOp
}

// Predicate is a predicate-tree leaf: a single-column comparison (spec
// §4.3).
type Predicate struct {
	ColumnRef string
	Op        CompareOp
	Value     Scalar
	Value2    Scalar // only meaningful for OpBetween
}

// Evaluate recursively scans chunk to produce its boolean bitmap (spec
// §4.3 "leaves produce a bitmap by scanning the column; AND/OR combine
// children bytewise on packed bitmaps").
func (n *PredicateNode) Evaluate(table *storage.Table, chunk *storage.Chunk) (storage.Bitmap, error) {
	if n.Leaf != nil {
		return n.Leaf.evaluate(table, chunk)
	}
	left, err := n.Connective.Left.Evaluate(table, chunk)
	if err != nil {
		return nil, err
	}
	right, err := n.Connective.Right.Evaluate(table, chunk)
	if err != nil {
		return nil, err
	}
	if n.Connective.Op == ConnAnd {
		return left.And(right, chunk.NumRows), nil
	}
	return left.Or(right, chunk.NumRows), nil
}

func (p *Predicate) evaluate(table *storage.Table, chunk *storage.Chunk) (storage.Bitmap, error) {
	colIdx, err := table.ColumnIndex(p.ColumnRef)
	if err != nil {
		return nil, err
	}
	col := chunk.Column(colIdx)
	out := storage.NewBitmap(chunk.NumRows)
	switch col.Kind() {
	case storage.KindString, storage.KindFixedBinary:
		if p.Value.Kind != storage.KindString && p.Value.Kind != storage.KindFixedBinary {
			return nil, annotateTypeMismatch(p.ColumnRef)
		}
		data := col.Data.(storage.BytesVector)
		for i := 0; i < chunk.NumRows; i++ {
			if col.Valid(i) && bytesCompare(data[i], p.Op, p.Value.Bytes, p.Value2.Bytes) {
				out.Set(i, true)
			}
		}
	default:
		if !col.Kind().IsInteger() {
			return nil, annotateTypeMismatch(p.ColumnRef)
		}
		for i := 0; i < chunk.NumRows; i++ {
			if col.Valid(i) && intCompare(col, i, p.Op, p.Value, p.Value2) {
				out.Set(i, true)
			}
		}
	}
	return out, nil
}

func bytesCompare(v []byte, op CompareOp, lo, hi []byte) bool {
	switch op {
	case OpEQ:
		return bytes.Equal(v, lo)
	case OpNE:
		return !bytes.Equal(v, lo)
	case OpLT:
		return bytes.Compare(v, lo) < 0
	case OpLE:
		return bytes.Compare(v, lo) <= 0
	case OpGT:
		return bytes.Compare(v, lo) > 0
	case OpGE:
		return bytes.Compare(v, lo) >= 0
	case OpBetween:
		return bytes.Compare(v, lo) >= 0 && bytes.Compare(v, hi) <= 0
	default:
		return false
	}
}

// intCompare reads column col's signed/unsigned value at row i as an
// int64/uint64 pair and compares against the scalar(s). BETWEEN on an
// unsigned range is implemented as (x-lo) <= (hi-lo) in unsigned
// arithmetic (spec §4.3 edge case); a signed column is compared against
// both bounds directly.
func intCompare(col *storage.Column, i int, op CompareOp, lo, hi Scalar) bool {
	signed, unsigned, isUnsigned := readInt(col, i)
	if op == OpBetween {
		if isUnsigned {
			return unsigned-lo.Uint <= hi.Uint-lo.Uint
		}
		return signed >= lo.Int && signed <= hi.Int
	}
	if isUnsigned {
		return compareUint(unsigned, op, lo.Uint)
	}
	return compareInt(signed, op, lo.Int)
}

func readInt(col *storage.Column, i int) (signed int64, unsigned uint64, isUnsigned bool) {
	switch v := col.Data.(type) {
	case storage.Int8Vector:
		return int64(v[i]), 0, false
	case storage.Int16Vector:
		return int64(v[i]), 0, false
	case storage.Int32Vector:
		return int64(v[i]), 0, false
	case storage.Int64Vector:
		return v[i], 0, false
	case storage.Uint8Vector:
		return 0, uint64(v[i]), true
	case storage.Uint16Vector:
		return 0, uint64(v[i]), true
	case storage.Uint32Vector:
		return 0, uint64(v[i]), true
	case storage.Uint64Vector:
		return 0, v[i], true
	default:
		return 0, 0, false
	}
}

func compareInt(v int64, op CompareOp, lo int64) bool {
	switch op {
	case OpEQ:
		return v == lo
	case OpNE:
		return v != lo
	case OpLT:
		return v < lo
	case OpLE:
		return v <= lo
	case OpGT:
		return v > lo
	case OpGE:
		return v >= lo
	default:
		return false
	}
}

func compareUint(v uint64, op CompareOp, lo uint64) bool {
	switch op {
	case OpEQ:
		return v == lo
	case OpNE:
		return v != lo
	case OpLT:
		return v < lo
	case OpLE:
		return v <= lo
	case OpGT:
		return v > lo
	case OpGE:
		return v >= lo
	default:
		return false
	}
}
