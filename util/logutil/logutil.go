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

// Package logutil wraps zap the way the teacher's util/logutil does: a
// process-global logger configurable at startup, plus per-context loggers
// that can carry a query id attached with WithQueryID.
package logutil

import (
	"context"
	"os"
	"sync"

	"github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxLoggerKeyType struct{}

var ctxLoggerKey = ctxLoggerKeyType{}

var (
	globalMu     sync.RWMutex
	globalLogger = newDefaultLogger()
)

func newDefaultLogger() *zap.Logger {
	logger, _, err := log.InitLogger(&log.Config{Level: "info"})
	if err != nil {
		// fall back to zap's own default rather than panic at import time.
		return zap.NewExample()
	}
	return logger
}

// Config describes how the process-wide logger should be initialized.
// It mirrors the subset of tidb's log.Config the core engine actually uses.
type Config struct {
	Level    string `toml:"level" json:"level"`
	File     string `toml:"file" json:"file"`
	MaxSize  int    `toml:"max-size" json:"max-size"`
	MaxDays  int    `toml:"max-days" json:"max-days"`
	MaxFiles int    `toml:"max-files" json:"max-files"`
}

// InitLogger installs the process-wide logger from cfg. Called once at
// startup from cmd/ssb; safe to call again in tests.
func InitLogger(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	if cfg.File == "" {
		logger, _, err := log.InitLogger(&log.Config{Level: cfg.Level})
		if err != nil {
			return err
		}
		globalMu.Lock()
		globalLogger = logger
		globalMu.Unlock()
		return nil
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return err
	}
	sink := zapWriteSyncer{&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSize, 300),
		MaxAge:     orDefault(cfg.MaxDays, 14),
		MaxBackups: orDefault(cfg.MaxFiles, 5),
	}}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, level)
	logger := zap.New(core)

	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type zapWriteSyncer struct {
	*lumberjack.Logger
}

func (z zapWriteSyncer) Sync() error { return nil }

// BgLogger returns the process-wide background logger, for code paths
// without a natural context (scheduler workers, the planner).
func BgLogger() *zap.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Logger returns the logger bound to ctx if one was attached by
// WithLogger, otherwise BgLogger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxLoggerKey).(*zap.Logger); ok {
			return l
		}
	}
	return BgLogger()
}

// WithLogger returns a copy of ctx carrying logger, so that downstream
// scheduler tasks spawned with that ctx log with query-scoped fields.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey, logger)
}

// WithQueryID returns a copy of ctx whose logger is tagged with queryID.
// The scheduler does not call it.
func WithQueryID(ctx context.Context, queryID uint64) context.Context {
	return WithLogger(ctx, Logger(ctx).With(zap.Uint64("query_id", queryID)))
}

func init() {
	if os.Getenv("HUSTLE_LOG_LEVEL") != "" {
		_ = InitLogger(&Config{Level: os.Getenv("HUSTLE_LOG_LEVEL")})
	}
}
