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

// Package config loads the engine's process-wide configuration, the way
// tidb's config package loads tidb's TOML file at startup. Everything the
// SQL layer, CLI, and on-disk loaders need lives outside the core and is
// out of scope here; this file only carries what the scheduler and
// operators read.
package config

import (
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"

	"github.com/hustledb/hustle/util/logutil"
)

// Config is the process-wide configuration object. The zero value differs
// from Default(): it leaves BlockSize and the log level unset.
type Config struct {
	// Workers is the scheduler's worker pool size. 0 means runtime.NumCPU().
	Workers int `toml:"workers" json:"workers"`
	// BlockSize is the maximum number of rows per chunk (B in spec.md §3).
	BlockSize int `toml:"block-size" json:"block-size"`
	Log       logutil.Config `toml:"log" json:"log"`
}

const defaultBlockSize = 1 << 16

// Default returns the engine's built-in configuration.
func Default() *Config {
	return &Config{
		Workers:   0,
		BlockSize: defaultBlockSize,
		Log:       logutil.Config{Level: "info"},
	}
}

var globalConfig atomic.Value

func init() {
	globalConfig.Store(Default())
}

// GetGlobalConfig returns the current process-wide config.
func GetGlobalConfig() *Config {
	return globalConfig.Load().(*Config)
}

// StoreGlobalConfig replaces the process-wide config, for callers that
// have loaded a TOML file with Load and for tests that want a
// deterministic block size.
func StoreGlobalConfig(c *Config) {
	globalConfig.Store(c)
}

// Load reads a TOML file into a Config, filling unset fields from Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = defaultBlockSize
	}
	return cfg, nil
}
