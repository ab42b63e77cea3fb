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

package storage

import "github.com/pingcap/errors"

// Error kinds from spec §7's error taxonomy that originate in the columnar
// layer. Planner- and operator-level kinds live in their own packages.
var (
	ErrMissingColumn = errors.New("hustle: missing column")
	ErrTypeMismatch  = errors.New("hustle: type mismatch")
)
