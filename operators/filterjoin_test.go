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

var _ = Suite(&testFilterJoinSuite{})

type testFilterJoinSuite struct{}

func (s *testFilterJoinSuite) TestFilterJoinKeepsRowsMatchingEveryDimension(c *C) {
	pool := scheduler.NewPool(2)

	fact := twoColTable("lineorder", "date_key", "cust_key", []int64{1, 2, 2, 3, 5}, []int64{1, 1, 2, 2, 1})
	dateDim := singleColTable("date", "pk", []int64{1, 2})
	custDim := singleColTable("customer", "pk", []int64{1, 2})

	factLT := operators.NewLazyTable(fact)
	dateLT := operators.NewLazyTable(dateDim)
	custLT := operators.NewLazyTable(custDim)

	factResult := operators.NewOperatorResult(factLT)
	dateResult := operators.NewOperatorResult(dateLT)
	custResult := operators.NewOperatorResult(custLT)

	joined, err := operators.FilterJoin(pool, factResult, factLT, []operators.LipDimension{
		{Result: dateResult, LT: dateLT, FactCol: "date_key", DimCol: "pk"},
		{Result: custResult, LT: custLT, FactCol: "cust_key", DimCol: "pk"},
	}, operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)

	// rows 0,1,2 match both dims (date_key,cust_key in {1,2}); row 3 has
	// date_key=3 (no such dimension row), row 4 has date_key=5 (same).
	c.Assert(joined.Find(fact).RowCount(), Equals, 3)
	c.Assert(joined.Find(dateDim).RowCount(), Equals, 3)
	c.Assert(joined.Find(custDim).RowCount(), Equals, 3)
}

func (s *testFilterJoinSuite) TestFilterJoinWithNoMatchesIsEmpty(c *C) {
	pool := scheduler.NewPool(2)

	fact := singleColTable("fact", "dim_key", []int64{100, 200})
	dim := singleColTable("dim", "pk", []int64{1, 2})

	factLT := operators.NewLazyTable(fact)
	dimLT := operators.NewLazyTable(dim)

	joined, err := operators.FilterJoin(pool, operators.NewOperatorResult(factLT), factLT, []operators.LipDimension{
		{Result: operators.NewOperatorResult(dimLT), LT: dimLT, FactCol: "dim_key", DimCol: "pk"},
	}, operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	c.Assert(joined.Find(fact).RowCount(), Equals, 0)
	c.Assert(joined.Find(dim).RowCount(), Equals, 0)
}

func (s *testFilterJoinSuite) TestFilterJoinRejectsNonInt64Key(c *C) {
	pool := scheduler.NewPool(2)
	fact := storage.NewTable("fact", storage.NewSchema(storage.Field{Name: "dim_key", Type: storage.KindFloat64}))
	chunk, err := storage.NewChunk([]*storage.Column{storage.NewColumn(storage.Float64Vector{1.0})})
	c.Assert(err, IsNil)
	fact.AppendChunk(chunk)
	dim := singleColTable("dim", "pk", []int64{1})

	factLT := operators.NewLazyTable(fact)
	dimLT := operators.NewLazyTable(dim)
	_, err = operators.FilterJoin(pool, operators.NewOperatorResult(factLT), factLT, []operators.LipDimension{
		{Result: operators.NewOperatorResult(dimLT), LT: dimLT, FactCol: "dim_key", DimCol: "pk"},
	}, operators.DefaultOperatorOptions())
	c.Assert(err, NotNil)
}
