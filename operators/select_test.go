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

var _ = Suite(&testSelectSuite{})

type testSelectSuite struct{}

func (s *testSelectSuite) TestSelectAppliesLeafPredicate(c *C) {
	pool := scheduler.NewPool(2)
	table := singleColTable("t", "a", []int64{1, 5, 10, 15, 20})

	lt, err := operators.Select(pool, operators.NewLazyTable(table),
		operators.Leaf(operators.Predicate{ColumnRef: "a", Op: operators.OpGE, Value: operators.Int64Scalar(10)}),
		operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	c.Assert(lt.RowCount(), Equals, 3)
}

func (s *testSelectSuite) TestSelectComposesWithPriorFilter(c *C) {
	pool := scheduler.NewPool(2)
	table := singleColTable("t", "a", []int64{1, 2, 3, 4, 5})

	first, err := operators.Select(pool, operators.NewLazyTable(table),
		operators.Leaf(operators.Predicate{ColumnRef: "a", Op: operators.OpGE, Value: operators.Int64Scalar(2)}),
		operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	c.Assert(first.RowCount(), Equals, 4) // 2,3,4,5

	second, err := operators.Select(pool, first,
		operators.Leaf(operators.Predicate{ColumnRef: "a", Op: operators.OpLE, Value: operators.Int64Scalar(3)}),
		operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	c.Assert(second.RowCount(), Equals, 2) // 2,3
}

func (s *testSelectSuite) TestSelectAndConnective(c *C) {
	pool := scheduler.NewPool(2)
	table := singleColTable("t", "a", []int64{1, 2, 3, 4, 5, 6})

	pred := operators.And(
		operators.Leaf(operators.Predicate{ColumnRef: "a", Op: operators.OpGT, Value: operators.Int64Scalar(1)}),
		operators.Leaf(operators.Predicate{ColumnRef: "a", Op: operators.OpLT, Value: operators.Int64Scalar(6)}),
	)
	lt, err := operators.Select(pool, operators.NewLazyTable(table), pred, operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	c.Assert(lt.RowCount(), Equals, 4) // 2,3,4,5
}

func (s *testSelectSuite) TestBetweenOnUnsignedColumn(c *C) {
	pool := scheduler.NewPool(2)
	table := storage.NewTable("t", storage.NewSchema(storage.Field{Name: "a", Type: storage.KindUint32}))
	chunk, err := storage.NewChunk([]*storage.Column{storage.NewColumn(storage.Uint32Vector{1, 5, 10, 50, 100})})
	c.Assert(err, IsNil)
	table.AppendChunk(chunk)

	pred := operators.Leaf(operators.Predicate{
		ColumnRef: "a", Op: operators.OpBetween,
		Value:  operators.Scalar{Kind: storage.KindUint32, Uint: 5},
		Value2: operators.Scalar{Kind: storage.KindUint32, Uint: 50},
	})
	lt, err := operators.Select(pool, operators.NewLazyTable(table), pred, operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	c.Assert(lt.RowCount(), Equals, 3) // 5,10,50
}
