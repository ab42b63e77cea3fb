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

// Package catalog is a minimal in-process name-to-table resolver. The
// planner and Materialize do not consult it: a ColumnReference always
// carries its LazyTable. A SQL-level catalog (privileges, persistence,
// DDL) is out of scope (spec.md §1 Non-goals).
package catalog

import (
	"sync"

	"github.com/pingcap/errors"

	"github.com/hustledb/hustle/storage"
)

// ErrUnknownTable is returned by Table when name was never registered.
var ErrUnknownTable = errors.New("hustle: unknown table")

// MemoryCatalog is an in-process name -> *storage.Table map, safe for
// concurrent use.
type MemoryCatalog struct {
	mu     sync.RWMutex
	tables map[string]*storage.Table
}

// NewMemoryCatalog returns an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{tables: make(map[string]*storage.Table)}
}

// Register adds or replaces the table under its own Name.
func (c *MemoryCatalog) Register(table *storage.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[table.Name] = table
}

// Table resolves name to its registered *storage.Table.
func (c *MemoryCatalog) Table(name string) (*storage.Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, errors.Annotatef(ErrUnknownTable, "table %q", name)
	}
	return t, nil
}

// Names returns every registered table name, in no particular order.
func (c *MemoryCatalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.tables))
	for name := range c.tables {
		out = append(out, name)
	}
	return out
}
