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

	"github.com/hustledb/hustle/storage"
)

// ExprOp is one of the four arithmetic operators an Expr tree supports
// (spec §4.7).
type ExprOp int

const (
	ExprAdd ExprOp = iota
	ExprSub
	ExprMul
	ExprDiv
)

// Expr is a node of an arithmetic expression tree over int64 columns (spec
// §4.7). A leaf has ColumnRef set and Left/Right nil; an internal node has
// Left/Right set and ColumnRef empty.
type Expr struct {
	ColumnRef   string
	Op          ExprOp
	Left, Right *Expr

	postfix []*Expr // computed once, lazily, by Evaluate
}

// ExprColumn builds a leaf referencing column name.
func ExprColumn(name string) *Expr { return &Expr{ColumnRef: name} }

// ExprBinary builds an internal node combining left and right with op.
func ExprBinary(op ExprOp, left, right *Expr) *Expr {
	return &Expr{Op: op, Left: left, Right: right}
}

// toPostfix flattens the tree into postfix order (spec §4.7: "converted to
// postfix at initialization").
func (e *Expr) toPostfix() []*Expr {
	if e.Left == nil && e.Right == nil {
		return []*Expr{e}
	}
	out := append([]*Expr(nil), e.Left.toPostfix()...)
	out = append(out, e.Right.toPostfix()...)
	out = append(out, &Expr{Op: e.Op})
	return out
}

type exprFrame struct {
	vec       storage.Int64Vector
	transient bool
}

// Evaluate walks the postfix form with a small stack machine, producing one
// Int64Vector for chunk (spec §4.7). Operand chunk types must match; no
// implicit conversion is performed. When both operands of a node are
// transient (already-computed, not a table's own column buffer) the left
// operand's buffer is reused as the output buffer in place.
func (e *Expr) Evaluate(table *storage.Table, chunk *storage.Chunk) (storage.Int64Vector, error) {
	if e.postfix == nil {
		e.postfix = e.toPostfix()
	}
	var stack []exprFrame
	for _, node := range e.postfix {
		if node.ColumnRef != "" {
			colIdx, err := table.ColumnIndex(node.ColumnRef)
			if err != nil {
				return nil, err
			}
			col := chunk.Column(colIdx)
			iv, ok := col.Data.(storage.Int64Vector)
			if !ok {
				return nil, annotateTypeMismatch(node.ColumnRef)
			}
			stack = append(stack, exprFrame{vec: iv, transient: false})
			continue
		}
		if len(stack) < 2 {
			return nil, errors.New("hustle: malformed expression tree")
		}
		r := stack[len(stack)-1]
		l := stack[len(stack)-2]
		stack = stack[:len(stack)-2]
		if len(l.vec) != len(r.vec) {
			return nil, annotateTypeMismatch("expression operand length mismatch")
		}
		var out storage.Int64Vector
		if l.transient && r.transient {
			out = l.vec
		} else {
			out = make(storage.Int64Vector, len(l.vec))
		}
		for i := range l.vec {
			out[i] = applyExprOp(node.Op, l.vec[i], r.vec[i])
		}
		stack = append(stack, exprFrame{vec: out, transient: true})
	}
	if len(stack) != 1 {
		return nil, errors.New("hustle: malformed expression tree")
	}
	return stack[0].vec, nil
}

func applyExprOp(op ExprOp, a, b int64) int64 {
	switch op {
	case ExprAdd:
		return a + b
	case ExprSub:
		return a - b
	case ExprMul:
		return a * b
	case ExprDiv:
		if b == 0 {
			return 0
		}
		return a / b
	default:
		return 0
	}
}
