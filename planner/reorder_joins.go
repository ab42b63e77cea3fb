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

package planner

import (
	"container/heap"

	"github.com/pingcap/errors"

	"github.com/hustledb/hustle/operators"
	"github.com/hustledb/hustle/scheduler"
	"github.com/hustledb/hustle/storage"
)

// JoinEndpoint names one side of an equality join predicate: a table's
// current (already Select'd) LazyTable view and the join column on it.
type JoinEndpoint struct {
	LT  *operators.LazyTable
	Col string
}

// JoinPredicate is one equality join predicate between two base tables
// (spec §4.8 "a set of equality join predicates").
type JoinPredicate struct {
	Left, Right JoinEndpoint
}

// joinInfo is one predicate queued for the greedy planner, carrying the
// dense table ids of its endpoints and its estimated cost.
type joinInfo struct {
	leftID, rightID int
	pred            JoinPredicate
	cost            int
}

type joinHeap []joinInfo

func (h joinHeap) Len() int            { return len(h) }
func (h joinHeap) Less(i, j int) bool  { return h[i].cost < h[j].cost }
func (h joinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *joinHeap) Push(x interface{}) { *h = append(*h, x.(joinInfo)) }
func (h *joinHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ReorderJoins greedily orders and executes predicates as a chain of
// HashJoins (spec §4.8). baseResults supplies, for every distinct base
// table referenced by predicates, the OperatorResult that table's
// LazyTable currently belongs to (its own singleton result if it hasn't
// been combined with anything yet). The returned OperatorResult is the
// single connected component's final result after all N-1 joins.
func ReorderJoins(pool *scheduler.Pool, predicates []JoinPredicate, baseResults map[*storage.Table]*operators.OperatorResult, opts operators.OperatorOptions) (*operators.OperatorResult, error) {
	if len(predicates) == 0 {
		return nil, errors.New("hustle: ReorderJoins requires at least one predicate")
	}

	tableIDs := make(map[*storage.Table]int)
	tableByID := make(map[int]*storage.Table)
	sizes := make([]int, 0)

	idFor := func(lt *operators.LazyTable) int {
		id, ok := tableIDs[lt.Table]
		if !ok {
			id = len(tableIDs)
			tableIDs[lt.Table] = id
			tableByID[id] = lt.Table
			sizes = append(sizes, lt.RowCount())
		}
		return id
	}

	pq := &joinHeap{}
	for _, p := range predicates {
		leftID := idFor(p.Left.LT)
		rightID := idFor(p.Right.LT)
		cost := sizes[leftID] * sizes[rightID]
		heap.Push(pq, joinInfo{leftID: leftID, rightID: rightID, pred: p, cost: cost})
	}

	forest := NewDisjointSetForest(len(tableIDs))
	componentResult := make([]*operators.OperatorResult, len(tableIDs))

	resultFor := func(grpID, tblID int) *operators.OperatorResult {
		if componentResult[grpID] == nil {
			componentResult[grpID] = baseResults[tableByID[tblID]]
		}
		return componentResult[grpID]
	}

	// The cheapest-first order popped off pq becomes a strict chain: each
	// join must finish (including whatever it fanned out internally on
	// pool) before the next one, since a later join may consume the
	// component result the previous one just produced.
	finalRoot := -1
	chain := scheduler.NewTaskChain(pool)
	for pq.Len() > 0 {
		ji := heap.Pop(pq).(joinInfo)

		chain.Then(func() error {
			lgrp := forest.Find(ji.leftID)
			rgrp := forest.Find(ji.rightID)
			if lgrp == rgrp {
				return errors.Annotatef(operators.ErrCyclicJoin, "tables %q and %q", tableByID[ji.leftID].Name, tableByID[ji.rightID].Name)
			}

			leftResult := resultFor(lgrp, ji.leftID)
			rightResult := resultFor(rgrp, ji.rightID)
			leftLT := leftResult.Find(tableByID[ji.leftID])
			rightLT := rightResult.Find(tableByID[ji.rightID])
			if leftLT == nil || rightLT == nil {
				return errors.New("hustle: planner could not locate join endpoint in its component's result")
			}

			joined, err := operators.HashJoin(pool, leftResult, leftLT, ji.pred.Left.Col, rightResult, rightLT, ji.pred.Right.Col, opts)
			if err != nil {
				return errors.Trace(err)
			}

			forest.Union(ji.leftID, ji.rightID)
			merged := forest.Find(ji.leftID)
			componentResult[merged] = joined
			finalRoot = merged
			return nil
		})
	}

	if err := chain.Run(); err != nil {
		return nil, err
	}
	if finalRoot == -1 {
		return nil, errors.New("hustle: ReorderJoins produced no plan")
	}
	return componentResult[finalRoot], nil
}
