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

// Package operators implements the physical operators of spec §4: Select,
// HashJoin, FilterJoin/LIP, HashAggregate, and the expression evaluator,
// plus the LazyTable/OperatorResult carriers they pass between each other.
package operators

import "github.com/pingcap/errors"

// Error kinds from spec §7's taxonomy, operator-scoped.
var (
	ErrTypeMismatch  = errors.New("hustle: type mismatch")
	ErrMissingColumn = errors.New("hustle: missing column")
	ErrCyclicJoin    = errors.New("hustle: cyclic join")
)

func annotateTypeMismatch(column string) error {
	return errors.Annotatef(ErrTypeMismatch, "column %q", column)
}
