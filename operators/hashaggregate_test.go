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

var _ = Suite(&testHashAggregateSuite{})

type testHashAggregateSuite struct{}

func (s *testHashAggregateSuite) TestSumGroupByWithOrderBy(c *C) {
	pool := scheduler.NewPool(2)
	table := twoColTable("sales", "region", "amount", []int64{1, 2, 1, 2, 1}, []int64{10, 20, 30, 40, 50})
	lt := operators.NewLazyTable(table)

	out, err := operators.HashAggregate(pool, operators.HashAggregateSpec{
		GroupBy:  []operators.ColumnReference{{Table: lt, ColName: "region"}},
		AggTable: lt,
		AggCol:   "amount",
		Func:     operators.AggSum,
		AggName:  "total",
		OrderBy:  []operators.OrderKey{{Ref: operators.ColumnReference{Table: lt, ColName: "region"}}},
	}, operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	c.Assert(out.TotalRows, Equals, 2)

	region := out.Chunks[0].Column(0).Data.(storage.Int64Vector)
	total := out.Chunks[0].Column(1).Data.(storage.Int64Vector)
	c.Assert(region, DeepEquals, storage.Int64Vector{1, 2})
	c.Assert(total, DeepEquals, storage.Int64Vector{90, 60})
}

func (s *testHashAggregateSuite) TestMeanAggregate(c *C) {
	pool := scheduler.NewPool(2)
	table := twoColTable("sales", "region", "amount", []int64{1, 1, 1}, []int64{10, 20, 30})
	lt := operators.NewLazyTable(table)

	out, err := operators.HashAggregate(pool, operators.HashAggregateSpec{
		AggTable: lt,
		AggCol:   "amount",
		Func:     operators.AggMean,
		AggName:  "avg_amount",
	}, operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	c.Assert(out.TotalRows, Equals, 1)
	avg := out.Chunks[0].Column(0).Data.(storage.Float64Vector)
	c.Assert(avg[0], Equals, 20.0)
}

func (s *testHashAggregateSuite) TestHashAggAndArrowAggAgree(c *C) {
	pool := scheduler.NewPool(4)
	table := twoColTable("sales", "region", "amount",
		[]int64{1, 2, 3, 1, 2, 3, 1, 2, 3, 1},
		[]int64{5, 6, 7, 8, 9, 10, 11, 12, 13, 14})
	lt := operators.NewLazyTable(table)

	spec := operators.HashAggregateSpec{
		GroupBy:  []operators.ColumnReference{{Table: lt, ColName: "region"}},
		AggTable: lt,
		AggCol:   "amount",
		Func:     operators.AggSum,
		AggName:  "total",
		OrderBy:  []operators.OrderKey{{Ref: operators.ColumnReference{Table: lt, ColName: "region"}}},
	}

	hashOpts := operators.DefaultOperatorOptions()
	hashOpts.AggregateType = operators.HashAgg
	arrowOpts := operators.DefaultOperatorOptions()
	arrowOpts.AggregateType = operators.ArrowAgg

	hashOut, err := operators.HashAggregate(pool, spec, hashOpts)
	c.Assert(err, IsNil)
	arrowOut, err := operators.HashAggregate(pool, spec, arrowOpts)
	c.Assert(err, IsNil)

	c.Assert(arrowOut.Chunks[0].Column(0).Data, DeepEquals, hashOut.Chunks[0].Column(0).Data)
	c.Assert(arrowOut.Chunks[0].Column(1).Data, DeepEquals, hashOut.Chunks[0].Column(1).Data)
}

func (s *testHashAggregateSuite) TestAggregateOverExpression(c *C) {
	pool := scheduler.NewPool(2)
	table := twoColTable("t", "a", "b", []int64{1, 1, 2}, []int64{10, 20, 30})
	lt := operators.NewLazyTable(table)

	out, err := operators.HashAggregate(pool, operators.HashAggregateSpec{
		GroupBy:  []operators.ColumnReference{{Table: lt, ColName: "a"}},
		AggTable: lt,
		AggExpr:  operators.ExprBinary(operators.ExprAdd, operators.ExprColumn("a"), operators.ExprColumn("b")),
		Func:     operators.AggSum,
		AggName:  "total",
		OrderBy:  []operators.OrderKey{{Ref: operators.ColumnReference{Table: lt, ColName: "a"}}},
	}, operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	total := out.Chunks[0].Column(1).Data.(storage.Int64Vector)
	// a=1: (1+10)+(1+20)=32; a=2: (2+30)=32
	c.Assert(total, DeepEquals, storage.Int64Vector{32, 32})
}
