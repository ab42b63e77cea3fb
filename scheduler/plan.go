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

package scheduler

import (
	"sync"

	"github.com/pingcap/errors"
)

// planNode is one operator in an ExecutionPlan DAG.
type planNode struct {
	idx       int
	run       Task
	consumers []int
	numProds  int

	mu        sync.Mutex
	remaining int
	done      chan struct{}
	err       error
}

// ExecutionPlan is the DAG of operator tasks the planner builds (spec
// §4.1, §4.8): nodes get a monotonically increasing index via AddOperator,
// edges are declared with CreateLink, and Start/Join drive execution so a
// consumer's task tree never begins before every declared producer's task
// tree (including whatever it fanned out internally) has completed.
type ExecutionPlan struct {
	pool  *Pool
	nodes []*planNode
}

// NewExecutionPlan creates an empty plan bound to pool.
func NewExecutionPlan(pool *Pool) *ExecutionPlan {
	return &ExecutionPlan{pool: pool}
}

// AddOperator registers run as a new node and returns its index.
func (p *ExecutionPlan) AddOperator(run Task) int {
	idx := len(p.nodes)
	p.nodes = append(p.nodes, &planNode{idx: idx, run: run, done: make(chan struct{})})
	return idx
}

// CreateLink declares that consumerIdx must not start until producerIdx's
// task tree has completed.
func (p *ExecutionPlan) CreateLink(producerIdx, consumerIdx int) {
	p.nodes[producerIdx].consumers = append(p.nodes[producerIdx].consumers, consumerIdx)
	p.nodes[consumerIdx].numProds++
}

// Start releases workers: every node with no unmet producer dependency is
// scheduled immediately; the rest wait on their producers' done channels.
func (p *ExecutionPlan) Start() {
	for _, n := range p.nodes {
		n.remaining = n.numProds
	}
	for _, n := range p.nodes {
		if n.remaining == 0 {
			p.runNode(n)
		}
	}
}

func (p *ExecutionPlan) runNode(n *planNode) {
	go func() {
		n.err = p.pool.SpawnAndWait(n.run)
		close(n.done)
		for _, ci := range n.consumers {
			c := p.nodes[ci]
			c.mu.Lock()
			c.remaining--
			ready := c.remaining == 0
			c.mu.Unlock()
			if ready {
				p.runNode(c)
			}
		}
	}()
}

// Join blocks the caller until every sink (node with no consumers) has
// completed, returning the first error encountered by any node.
func (p *ExecutionPlan) Join() error {
	for _, n := range p.nodes {
		if len(n.consumers) == 0 {
			<-n.done
		}
	}
	// Every non-sink node finished before the sinks it feeds started, so
	// all errors are visible here.
	for _, n := range p.nodes {
		if n.err != nil {
			return errors.Trace(n.err)
		}
	}
	return nil
}
