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

// Package scheduler executes a DAG of short-lived tasks on a fixed-size
// worker pool (spec §4.1). The model is fork/join with explicit edges: a
// task may spawn children and a parent is not "finished" until every task
// it transitively spawned has completed, the way the teacher's
// indexWorker/tableWorker pair hands work between goroutines with
// WaitGroups and a panic-to-error channel
// (executor/distsql.go: fetchHandles / pickAndExecTask), generalized from
// an ad-hoc two-stage pipeline into a general task graph.
package scheduler

import (
	"runtime"
	"sync"

	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/hustledb/hustle/util/logutil"
)

// Task is a unit of work that runs to completion on one worker. A task
// that wants to fan out spawns children on the owning Pool and blocks (via
// WaitGroup) until they finish — there is no suspension inside a task
// (spec §5).
type Task func() error

// Pool is a fixed-size worker goroutine pool. One Pool is typically shared
// by the whole process (spec §4.1 "one global scheduler per process"), but
// tests create private pools freely.
type Pool struct {
	workers int
	tasks   chan func()
	wg      sync.WaitGroup

	mu       sync.Mutex
	firstErr error
	failed   atomic.Bool

	started atomic.Bool
	closeCh chan struct{}
}

// NewPool creates a pool with the given worker count. workers<=0 defaults
// to runtime.NumCPU(), mirroring the pack's worker.Pool example.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		workers: workers,
		tasks:   make(chan func(), workers*4),
		closeCh: make(chan struct{}),
	}
	return p
}

// Start launches the worker goroutines. Safe to call once; Spawn before
// Start simply queues work for when goroutines come up.
func (p *Pool) Start() {
	if !p.started.CAS(false, true) {
		return
	}
	for i := 0; i < p.workers; i++ {
		go p.worker()
	}
}

func (p *Pool) worker() {
	for {
		select {
		case <-p.closeCh:
			return
		case fn, ok := <-p.tasks:
			if !ok {
				return
			}
			fn()
		}
	}
}

// Spawn enqueues task for execution once a worker is free. Spawn itself
// does not block; use Wait to know when every Spawn'd task has finished.
func (p *Pool) Spawn(t Task) {
	p.wg.Add(1)
	wrapped := func() {
		defer p.wg.Done()
		p.runRecovered(t)
	}
	select {
	case p.tasks <- wrapped:
	default:
		// buffer full (pool not yet started, or a burst beyond the buffer):
		// hand the send to a goroutine so the caller never blocks; the task
		// still runs to completion on a worker once one takes it.
		go func() { p.tasks <- wrapped }()
	}
}

// SpawnAndWait runs every task and blocks until all of them (and anything
// they themselves spawn via nested SpawnAndWait/Chain calls on this same
// pool) have completed. This is the primitive TaskChain and per-operator
// fan-out (parallel chunk scans) are built from.
func (p *Pool) SpawnAndWait(tasks ...Task) error {
	var wg sync.WaitGroup
	errs := make([]error, len(tasks))
	for i, t := range tasks {
		wg.Add(1)
		i, t := i, t
		p.dispatch(func() {
			defer wg.Done()
			errs[i] = p.recoveredCall(t)
		})
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) dispatch(fn func()) {
	if !p.started.Load() {
		// Pool not started (e.g. unit tests constructing a Pool inline):
		// run synchronously so callers don't need an explicit Start().
		fn()
		return
	}
	select {
	case p.tasks <- fn:
	default:
		go p.tasks2(fn)
	}
}

func (p *Pool) tasks2(fn func()) { p.tasks <- fn }

func (p *Pool) runRecovered(t Task) {
	err := p.recoveredCall(t)
	if err != nil {
		p.recordErr(err)
	}
}

func (p *Pool) recoveredCall(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("hustle: task panicked: %v", r)
			logutil.BgLogger().Error("scheduler task panicked", zap.Any("panic", r))
		}
	}()
	failpoint.Inject("schedulerTaskPanic", func() {
		panic("injected scheduler panic")
	})
	return t()
}

func (p *Pool) recordErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.firstErr == nil {
		p.firstErr = err
	}
	p.failed.Store(true)
}

// Err returns the first error recorded by a Spawn'd task, if any.
func (p *Pool) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}

// Wait blocks until every Spawn'd task (not SpawnAndWait'd — those block
// their own caller) has completed, then returns the first error if any.
func (p *Pool) Wait() error {
	p.wg.Wait()
	return p.Err()
}

// Close stops worker goroutines. Queries are cancelled all-or-nothing
// (spec §4.1); Close is the query-level teardown.
func (p *Pool) Close() {
	close(p.closeCh)
}

// Workers returns the configured worker count, used to size parallel
// batches (spec's "num_chunks/(threads*parallel_factor)" formula).
func (p *Pool) Workers() int { return p.workers }
