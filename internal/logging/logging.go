// Copyright 2026 The authserver Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging provides a package-level structured logger used by every
// component, so call sites never thread a logger through constructors.
// It mirrors the shape the teacher's own logger package exposes
// (package-level Debug/Info/Warn/Error/DPanic, each with f/w variants) but
// is backed directly by go.uber.org/zap since the teacher's actual
// implementation wraps an internal, unavailable logging core.
package logging

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
)

var singleton atomic.Pointer[zap.SugaredLogger]

func init() {
	singleton.Store(mustBuild(unstructuredLogsWithEnv(osEnv{})))
}

// osEnv reads the real process environment; a Reader seam lets tests swap it
// out without touching global state.
type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

type Reader interface {
	Getenv(key string) string
}

// unstructuredLogsWithEnv reports whether console (human-readable) encoding
// should be used, based on UNSTRUCTURED_LOGS. Default true; only the
// literal value "false" switches to JSON encoding. Any other value, present
// or absent, keeps the safe default.
func unstructuredLogsWithEnv(env Reader) bool {
	v := env.Getenv("UNSTRUCTURED_LOGS")
	return v != "false"
}

func mustBuild(unstructured bool) *zap.SugaredLogger {
	var cfg zap.Config
	if unstructured {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := zap.ParseAtomicLevel(lvl); err == nil {
			cfg.Level = parsed
		}
	}
	logger, err := cfg.Build()
	if err != nil {
		// Logging must never prevent startup; fall back to a no-op core.
		logger = zap.NewNop()
	}
	return logger.Sugar()
}

func current() *zap.SugaredLogger { return singleton.Load() }

// setSingletonForTest swaps the global logger, returning a restore func.
// Unexported; used only by this package's tests.
func setSingletonForTest(l *zap.SugaredLogger) func() {
	prev := singleton.Load()
	singleton.Store(l)
	return func() { singleton.Store(prev) }
}

func Debug(args ...any)                  { current().Debug(args...) }
func Debugf(template string, args ...any) { current().Debugf(template, args...) }
func Debugw(msg string, keysAndValues ...any) { current().Debugw(msg, keysAndValues...) }

func Info(args ...any)                  { current().Info(args...) }
func Infof(template string, args ...any) { current().Infof(template, args...) }
func Infow(msg string, keysAndValues ...any) { current().Infow(msg, keysAndValues...) }

func Warn(args ...any)                  { current().Warn(args...) }
func Warnf(template string, args ...any) { current().Warnf(template, args...) }
func Warnw(msg string, keysAndValues ...any) { current().Warnw(msg, keysAndValues...) }

func Error(args ...any)                  { current().Error(args...) }
func Errorf(template string, args ...any) { current().Errorf(template, args...) }
func Errorw(msg string, keysAndValues ...any) { current().Errorw(msg, keysAndValues...) }

func DPanic(args ...any)                  { current().DPanic(args...) }
func DPanicf(template string, args ...any) { current().DPanicf(template, args...) }
func DPanicw(msg string, keysAndValues ...any) { current().DPanicw(msg, keysAndValues...) }

func Fatal(args ...any)                  { current().Fatal(args...) }
func Fatalf(template string, args ...any) { current().Fatalf(template, args...) }
func Fatalw(msg string, keysAndValues ...any) { current().Fatalw(msg, keysAndValues...) }

// With returns a child logger carrying the given key/value pairs on every
// subsequent call, for request-scoped fields (request id, client_id, sub).
func With(keysAndValues ...any) *zap.SugaredLogger {
	return current().With(keysAndValues...)
}

// Sync flushes any buffered log entries. Call during graceful shutdown.
func Sync() error {
	return current().Sync()
}
