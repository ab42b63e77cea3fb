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

// TaskChain is a fluent builder (design note §9: "task chains built from
// variadic templates → fluent builder") that guarantees each step is fully
// finished, including anything it transitively spawned on the pool, before
// the next step starts.
type TaskChain struct {
	pool  *Pool
	steps []Task
}

// NewTaskChain returns an empty chain bound to pool.
func NewTaskChain(pool *Pool) *TaskChain {
	return &TaskChain{pool: pool}
}

// Then appends a step. Steps run strictly in append order.
func (c *TaskChain) Then(t Task) *TaskChain {
	c.steps = append(c.steps, t)
	return c
}

// Run executes every step in order, stopping at the first error.
func (c *TaskChain) Run() error {
	for _, step := range c.steps {
		if err := c.pool.SpawnAndWait(step); err != nil {
			return err
		}
	}
	return nil
}
