/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package xlog wraps zap so every subsystem logs through a named child
// logger obtained from LoggerModule, instead of holding global state.
package xlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Log is a thin alias so call sites read xlog.Log instead of zap.Logger,
// matching the teacher's server.go field type.
type Log = zap.Logger

var (
	mu   sync.RWMutex
	base *zap.Logger
)

func init() {
	base, _ = zap.NewProduction()
}

// FileConfig configures lumberjack-backed file rotation for the
// production logger.
type FileConfig struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Configure replaces the base logger. When file is non-nil, output is
// written through a lumberjack rotating writer instead of stderr.
func Configure(level zapcore.Level, file *FileConfig) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer
	if file != nil && file.Filename != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   file.Filename,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   file.Compress,
		})
	} else {
		sink = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, level)
	logger := zap.New(core, zap.AddCaller())

	mu.Lock()
	base = logger
	mu.Unlock()
}

// LoggerModule returns a child logger tagged with the owning subsystem
// name, e.g. xlog.LoggerModule("session").
func LoggerModule(name string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(name)
}

// Sync flushes any buffered log entries; call during shutdown.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}
