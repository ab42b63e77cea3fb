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

package planner_test

import (
	. "github.com/pingcap/check"

	"github.com/hustledb/hustle/operators"
	"github.com/hustledb/hustle/planner"
	"github.com/hustledb/hustle/scheduler"
	"github.com/hustledb/hustle/storage"
)

var _ = Suite(&testReorderJoinsSuite{})

type testReorderJoinsSuite struct{}

func singleColTable(name, col string, values []int64) *storage.Table {
	table := storage.NewTable(name, storage.NewSchema(storage.Field{Name: col, Type: storage.KindInt64}))
	chunk, err := storage.NewChunk([]*storage.Column{storage.NewColumn(storage.Int64Vector(values))})
	if err != nil {
		panic(err)
	}
	table.AppendChunk(chunk)
	return table
}

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

func (s *testReorderJoinsSuite) TestChainJoinsThreeTables(c *C) {
	pool := scheduler.NewPool(2)
	pool.Start()
	defer pool.Close()

	r := singleColTable("r", "id", []int64{1, 2, 3})
	sTable := twoColTable("s", "r_id", "t_id", []int64{1, 2, 2}, []int64{10, 20, 20})
	t := singleColTable("t", "id", []int64{10, 20})

	rLT := operators.NewLazyTable(r)
	sLT := operators.NewLazyTable(sTable)
	tLT := operators.NewLazyTable(t)

	baseResults := map[*storage.Table]*operators.OperatorResult{
		r:      operators.NewOperatorResult(rLT),
		sTable: operators.NewOperatorResult(sLT),
		t:      operators.NewOperatorResult(tLT),
	}

	predicates := []planner.JoinPredicate{
		{Left: planner.JoinEndpoint{LT: rLT, Col: "id"}, Right: planner.JoinEndpoint{LT: sLT, Col: "r_id"}},
		{Left: planner.JoinEndpoint{LT: sLT, Col: "t_id"}, Right: planner.JoinEndpoint{LT: tLT, Col: "id"}},
	}

	result, err := planner.ReorderJoins(pool, predicates, baseResults, operators.DefaultOperatorOptions())
	c.Assert(err, IsNil)

	rOut := result.Find(r)
	c.Assert(rOut, NotNil)
	// r=1 joins s-row0 (t_id=10) joins t-row0: one output row.
	// r=2 joins s-rows 1,2 (both t_id=20) joins t-row1: two output rows.
	c.Assert(rOut.RowCount(), Equals, 3)
}

func (s *testReorderJoinsSuite) TestCyclicJoinIsRejected(c *C) {
	pool := scheduler.NewPool(2)
	pool.Start()
	defer pool.Close()

	r := singleColTable("r", "id", []int64{1})
	sTable := singleColTable("s", "id", []int64{1})
	t := singleColTable("t", "id", []int64{1})

	rLT := operators.NewLazyTable(r)
	sLT := operators.NewLazyTable(sTable)
	tLT := operators.NewLazyTable(t)

	baseResults := map[*storage.Table]*operators.OperatorResult{
		r:      operators.NewOperatorResult(rLT),
		sTable: operators.NewOperatorResult(sLT),
		t:      operators.NewOperatorResult(tLT),
	}

	predicates := []planner.JoinPredicate{
		{Left: planner.JoinEndpoint{LT: rLT, Col: "id"}, Right: planner.JoinEndpoint{LT: sLT, Col: "id"}},
		{Left: planner.JoinEndpoint{LT: sLT, Col: "id"}, Right: planner.JoinEndpoint{LT: tLT, Col: "id"}},
		{Left: planner.JoinEndpoint{LT: tLT, Col: "id"}, Right: planner.JoinEndpoint{LT: rLT, Col: "id"}},
	}

	_, err := planner.ReorderJoins(pool, predicates, baseResults, operators.DefaultOperatorOptions())
	c.Assert(err, NotNil)
}
