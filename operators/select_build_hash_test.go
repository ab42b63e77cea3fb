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
)

var _ = Suite(&testSelectBuildHashSuite{})

type testSelectBuildHashSuite struct{}

func (s *testSelectBuildHashSuite) TestSelectBuildHashProducesUsableBuildSide(c *C) {
	pool := scheduler.NewPool(2)
	dim := singleColTable("dim", "pk", []int64{1, 2, 3, 4, 5})

	pred := operators.Leaf(operators.Predicate{ColumnRef: "pk", Op: operators.OpGE, Value: operators.Int64Scalar(3)})
	lt, err := operators.SelectBuildHash(pool, operators.NewLazyTable(dim), pred, "pk", operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	c.Assert(lt.RowCount(), Equals, 3)
	c.Assert(lt.HashTable, NotNil)

	rows := lt.Rows()
	for j, rid := range rows {
		col := dim.Chunks[rid.ChunkID].Column(0)
		key := col.Int64At(int(rid.LocalRow))
		hits := lt.HashTable.Lookup(key)
		c.Assert(hits, DeepEquals, []uint32{uint32(j)})
	}
}

func (s *testSelectBuildHashSuite) TestSelectBuildHashFusesIntoHashJoin(c *C) {
	pool := scheduler.NewPool(2)
	fact := singleColTable("fact", "dim_key", []int64{3, 4, 100})
	dim := singleColTable("dim", "pk", []int64{1, 2, 3, 4, 5})

	pred := operators.Leaf(operators.Predicate{ColumnRef: "pk", Op: operators.OpGE, Value: operators.Int64Scalar(3)})
	dimLT, err := operators.SelectBuildHash(pool, operators.NewLazyTable(dim), pred, "pk", operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)

	factLT := operators.NewLazyTable(fact)
	out, err := operators.HashJoin(pool, operators.NewOperatorResult(factLT), factLT, "dim_key",
		operators.NewOperatorResult(dimLT), dimLT, "pk", operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)
	c.Assert(out.Find(fact).RowCount(), Equals, 2)
}
