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
	"github.com/hustledb/hustle/storage"
)

var _ = Suite(&testExpressionSuite{})

type testExpressionSuite struct{}

func (s *testExpressionSuite) TestEvaluateArithmeticTree(c *C) {
	table := twoColTable("t", "a", "b", []int64{1, 2, 3}, []int64{10, 20, 30})
	chunk := table.Chunks[0]

	// (a + b) * a
	expr := operators.ExprBinary(operators.ExprMul,
		operators.ExprBinary(operators.ExprAdd, operators.ExprColumn("a"), operators.ExprColumn("b")),
		operators.ExprColumn("a"))

	out, err := expr.Evaluate(table, chunk)
	c.Assert(err, IsNil)
	c.Assert(out, DeepEquals, storage.Int64Vector{11, 44, 99})
}

func (s *testExpressionSuite) TestDivisionByZeroYieldsZero(c *C) {
	table := twoColTable("t", "a", "b", []int64{10, 20}, []int64{0, 5})
	chunk := table.Chunks[0]

	expr := operators.ExprBinary(operators.ExprDiv, operators.ExprColumn("a"), operators.ExprColumn("b"))
	out, err := expr.Evaluate(table, chunk)
	c.Assert(err, IsNil)
	c.Assert(out, DeepEquals, storage.Int64Vector{0, 4})
}

func (s *testExpressionSuite) TestEvaluateRejectsUnknownColumn(c *C) {
	table := singleColTable("t", "a", []int64{1, 2})
	chunk := table.Chunks[0]

	expr := operators.ExprColumn("missing")
	_, err := expr.Evaluate(table, chunk)
	c.Assert(err, NotNil)
}
