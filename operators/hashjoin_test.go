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

package operators_test

import (
	. "github.com/pingcap/check"

	"github.com/hustledb/hustle/operators"
	"github.com/hustledb/hustle/scheduler"
	"github.com/hustledb/hustle/storage"
)

var _ = Suite(&testHashJoinSuite{})

type testHashJoinSuite struct{}

func twoColTable(name, colA, colB string, a, b []int64) *storage.Table {
	table := storage.NewTable(name, storage.NewSchema(
		storage.Field{Name: colA, Type: storage.KindInt64},
		storage.Field{Name: colB, Type: storage.KindInt64},
	))
	chunk, err := storage.NewChunk([]*storage.Column{
		storage.NewColumn(storage.Int64Vector(a)),
		storage.NewColumn(storage.Int64Vector(b)),
	})
	if err != nil {
		panic(err)
	}
	table.AppendChunk(chunk)
	return table
}

func (s *testHashJoinSuite) TestHashJoinDuplicateKeysCartesian(c *C) {
	pool := scheduler.NewPool(2)

	left := singleColTable("left", "k", []int64{1, 1, 2, 3})
	right := singleColTable("right", "k", []int64{1, 2, 2})

	leftLT := operators.NewLazyTable(left)
	rightLT := operators.NewLazyTable(right)
	leftResult := operators.NewOperatorResult(leftLT)
	rightResult := operators.NewOperatorResult(rightLT)

	out, err := operators.HashJoin(pool, leftResult, leftLT, "k", rightResult, rightLT, "k", operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)

	// left k=1 (x2 rows) * right k=1 (x1 row) = 2
	// left k=2 (x1 row) * right k=2 (x2 rows) = 2
	// left k=3 matches nothing
	c.Assert(out.Find(left).RowCount(), Equals, 4)
	c.Assert(out.Find(right).RowCount(), Equals, 4)
}

func (s *testHashJoinSuite) TestHashJoinEmptyProbeSideShortCircuits(c *C) {
	pool := scheduler.NewPool(2)

	left := singleColTable("left", "k", []int64{1, 2})
	right := singleColTable("right", "k", []int64{1, 2})

	leftLT, err := operators.Select(pool, operators.NewLazyTable(left),
		operators.Leaf(operators.Predicate{ColumnRef: "k", Op: operators.OpGT, Value: operators.Int64Scalar(100)}),
		operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	rightLT := operators.NewLazyTable(right)

	out, err := operators.HashJoin(pool, operators.NewOperatorResult(leftLT), leftLT, "k",
		operators.NewOperatorResult(rightLT), rightLT, "k", operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	c.Assert(out.Find(left).RowCount(), Equals, 0)
	c.Assert(out.Find(right).RowCount(), Equals, 0)
}

func (s *testHashJoinSuite) TestHashJoinBackPropagatesSiblingLazyTables(c *C) {
	pool := scheduler.NewPool(2)

	fact := twoColTable("fact", "dim_key", "val", []int64{1, 2, 3}, []int64{100, 200, 300})
	dim := singleColTable("dim", "pk", []int64{2, 3})

	factLT := operators.NewLazyTable(fact)
	dimLT := operators.NewLazyTable(dim)

	out, err := operators.HashJoin(pool, operators.NewOperatorResult(factLT), factLT, "dim_key",
		operators.NewOperatorResult(dimLT), dimLT, "pk", operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	c.Assert(out.Find(fact).RowCount(), Equals, 2)

	valCol, err := out.Find(fact).Table.ColumnIndex("val")
	c.Assert(err, IsNil)
	vals, err := out.Find(fact).MaterializeInt64Column(pool, valCol)
	c.Assert(err, IsNil)
	c.Assert(vals, DeepEquals, storage.Int64Vector{200, 300})
}

func (s *testHashJoinSuite) TestHashJoinRejectsNonInt64Column(c *C) {
	pool := scheduler.NewPool(2)
	left := storage.NewTable("left", storage.NewSchema(storage.Field{Name: "k", Type: storage.KindFloat64}))
	chunk, err := storage.NewChunk([]*storage.Column{storage.NewColumn(storage.Float64Vector{1.0})})
	c.Assert(err, IsNil)
	left.AppendChunk(chunk)
	right := singleColTable("right", "k", []int64{1})

	leftLT := operators.NewLazyTable(left)
	rightLT := operators.NewLazyTable(right)
	_, err = operators.HashJoin(pool, operators.NewOperatorResult(leftLT), leftLT, "k",
		operators.NewOperatorResult(rightLT), rightLT, "k", operators.DefaultOperatorOptions())
	c.Assert(err, NotNil)
}
