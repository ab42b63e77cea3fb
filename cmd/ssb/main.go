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

// Command ssb builds a synthetic star schema in memory (a lineorder fact
// table plus date and customer dimensions, shaped after the Star Schema
// Benchmark) and runs one LIP-enabled query directly against the operator
// DAG, the way the original C++ benchmark drives its operators without a
// SQL parser. There is no query surface here by design (spec.md §1
// Non-goals); this binary only exists to exercise the engine end to end.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/hustledb/hustle/config"
	"github.com/hustledb/hustle/operators"
	"github.com/hustledb/hustle/scheduler"
	"github.com/hustledb/hustle/storage"
	"github.com/hustledb/hustle/util/logutil"
)

const (
	numDates   = 2556 // ~7 years of days
	numCusts   = 30000
	numOrders  = 2_000_000
	dateYears  = 7
	custNation = 5
)

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {})); err != nil {
		fmt.Fprintln(os.Stderr, "ssb: maxprocs.Set:", err)
	}
	cfg := config.GetGlobalConfig()
	if err := logutil.InitLogger(&cfg.Log); err != nil {
		fmt.Fprintln(os.Stderr, "ssb: InitLogger:", err)
		os.Exit(1)
	}

	pool := scheduler.NewPool(cfg.Workers)
	pool.Start()
	defer pool.Close()

	rng := rand.New(rand.NewSource(42))

	date := buildDimension("date", numDates, dateYears, rng)
	cust := buildDimension("customer", numCusts, custNation, rng)
	lineorder := buildFact("lineorder", numOrders, numDates, numCusts, rng)

	opts := operators.DefaultOperatorOptions()
	start := time.Now()

	// Both dimension selects read disjoint tables, so they're declared as
	// independent producer nodes and run concurrently; the join/aggregate
	// step is their shared consumer and only starts once both finish.
	var dateLT, custLT *operators.LazyTable
	var selectErr error
	plan := scheduler.NewExecutionPlan(pool)
	dateNode := plan.AddOperator(func() error {
		var err error
		dateLT, err = operators.Select(pool, operators.NewLazyTable(date),
			operators.Leaf(operators.Predicate{ColumnRef: "bucket", Op: operators.OpEQ, Value: operators.Int64Scalar(3)}), opts)
		return err
	})
	custNode := plan.AddOperator(func() error {
		var err error
		custLT, err = operators.Select(pool, operators.NewLazyTable(cust),
			operators.Leaf(operators.Predicate{ColumnRef: "bucket", Op: operators.OpLT, Value: operators.Int64Scalar(2)}), opts)
		return err
	})

	var result *storage.Table
	var dateOut, custOut, factOut *operators.LazyTable
	joinNode := plan.AddOperator(func() error {
		factLT := operators.NewLazyTable(lineorder)
		factResult := operators.NewOperatorResult(factLT)
		dateResult := operators.NewOperatorResult(dateLT)
		custResult := operators.NewOperatorResult(custLT)

		joined, err := operators.FilterJoin(pool, factResult, factLT, []operators.LipDimension{
			{Result: dateResult, LT: dateLT, FactCol: "date_key", DimCol: "pk"},
			{Result: custResult, LT: custLT, FactCol: "cust_key", DimCol: "pk"},
		}, opts)
		if err != nil {
			return err
		}

		dateOut = joined.Find(date)
		custOut = joined.Find(cust)
		factOut = joined.Find(lineorder)

		result, err = operators.HashAggregate(pool, operators.HashAggregateSpec{
			GroupBy: []operators.ColumnReference{
				{Table: dateOut, ColName: "bucket"},
				{Table: custOut, ColName: "bucket"},
			},
			AggTable: factOut,
			AggCol:   "revenue",
			Func:     operators.AggSum,
			AggName:  "total_revenue",
			OrderBy: []operators.OrderKey{
				{Ref: operators.ColumnReference{Table: dateOut, ColName: "bucket"}},
				{Ref: operators.ColumnReference{Table: custOut, ColName: "bucket"}},
			},
		}, opts)
		return err
	})
	plan.CreateLink(dateNode, joinNode)
	plan.CreateLink(custNode, joinNode)

	plan.Start()
	selectErr = plan.Join()
	must(selectErr)

	elapsed := time.Since(start)
	logutil.BgLogger().Info("ssb query finished",
		zap.Int("lineorder_rows", lineorder.TotalRows),
		zap.Int("date_rows", date.TotalRows),
		zap.Int("customer_rows", cust.TotalRows),
		zap.Int("output_rows", result.TotalRows),
		zap.Duration("elapsed", elapsed))
	fmt.Printf("lineorder=%d date=%d customer=%d -> %d output rows in %s\n",
		lineorder.TotalRows, date.TotalRows, cust.TotalRows, result.TotalRows, elapsed)
}

// buildDimension builds a table with an int64 primary key "pk" (0..n-1) and
// an int64 "bucket" attribute uniform over [0, numBuckets).
func buildDimension(name string, n, numBuckets int, rng *rand.Rand) *storage.Table {
	pk := make([]int64, n)
	bucket := make([]int64, n)
	for i := 0; i < n; i++ {
		pk[i] = int64(i)
		bucket[i] = int64(rng.Intn(numBuckets))
	}
	return chunkInt64Table(name, []string{"pk", "bucket"}, [][]int64{pk, bucket})
}

// buildFact builds the lineorder-shaped fact table: foreign keys into the
// date and customer dimensions, plus an int64 revenue measure.
func buildFact(name string, n, numDates, numCusts int, rng *rand.Rand) *storage.Table {
	dateKey := make([]int64, n)
	custKey := make([]int64, n)
	revenue := make([]int64, n)
	for i := 0; i < n; i++ {
		dateKey[i] = int64(rng.Intn(numDates))
		custKey[i] = int64(rng.Intn(numCusts))
		revenue[i] = int64(rng.Intn(10000))
	}
	return chunkInt64Table(name, []string{"date_key", "cust_key", "revenue"}, [][]int64{dateKey, custKey, revenue})
}

// chunkInt64Table assembles parallel int64 columns into a Table, splitting
// at storage.MaxChunkRows boundaries.
func chunkInt64Table(name string, names []string, columns [][]int64) *storage.Table {
	fields := make([]storage.Field, len(names))
	for i, n := range names {
		fields[i] = storage.Field{Name: n, Type: storage.KindInt64}
	}
	table := storage.NewTable(name, storage.NewSchema(fields...))

	total := 0
	if len(columns) > 0 {
		total = len(columns[0])
	}
	for start := 0; start < total || total == 0; start += storage.MaxChunkRows {
		end := start + storage.MaxChunkRows
		if end > total {
			end = total
		}
		cols := make([]*storage.Column, len(columns))
		for i, c := range columns {
			v := make(storage.Int64Vector, end-start)
			copy(v, c[start:end])
			cols[i] = storage.NewColumn(v)
		}
		chunk, err := storage.NewChunk(cols)
		must(err)
		table.AppendChunk(chunk)
		if total == 0 {
			break
		}
	}
	return table
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "ssb:", err)
		os.Exit(1)
	}
}
