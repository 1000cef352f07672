// Copyright 2025 Molt Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/wire"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ProviderSet is the Wire provider set for the log package.
var ProviderSet = wire.NewSet(Init)

// Options controls the process-wide logger.
type Options struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // console or json
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxSize"` // MB per rotated file
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"` // days
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// SetDefaults normalizes zero values.
func (o *Options) SetDefaults() {
	if o.Level == "" {
		o.Level = "info"
	}
	if o.Format == "" {
		o.Format = "console"
	}
	if o.MaxSize <= 0 {
		o.MaxSize = 100
	}
	if o.MaxBackups <= 0 {
		o.MaxBackups = 10
	}
	if o.MaxAge <= 0 {
		o.MaxAge = 7
	}
}

// Logger wraps the sugared zap logger for injection points that want a handle
// instead of the package-level functions.
type Logger struct {
	Log *zap.SugaredLogger
}

var (
	mu     sync.RWMutex
	base   *zap.Logger
	sugar  *zap.SugaredLogger
	atomLv = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	// Usable before Init: console-only, info level.
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	l, _ := cfg.Build(zap.AddCallerSkip(1))
	base = l
	sugar = l.Sugar()
}

// Init builds the global logger from options. Returns a flush func.
func Init(opts Options) (*Logger, func(), error) {
	opts.SetDefaults()
	atomLv.SetLevel(parseLevel(opts.Level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder

	var cores []zapcore.Core
	if opts.Console || opts.Dir == "" {
		consoleEnc := zapcore.NewConsoleEncoder(encCfg)
		if opts.Format == "json" {
			consoleEnc = zapcore.NewJSONEncoder(encCfg)
		}
		cores = append(cores, zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stdout), atomLv))
	}
	if opts.Dir != "" {
		filename := opts.Filename
		if filename == "" {
			filename = "molt.log"
		}
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, filename),
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, atomLv))
	}

	core := zapcore.NewTee(cores...)
	l := zap.New(&traceCore{Core: core}, zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	base = l
	sugar = l.Sugar()
	mu.Unlock()

	cleanup := func() { _ = l.Sync() }
	return &Logger{Log: l.Sugar()}, cleanup, nil
}

// SetLevel swaps the level at runtime (config hot reload).
func SetLevel(level string) {
	atomLv.SetLevel(parseLevel(level))
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func s() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Debugw logs a message with key-value pairs at debug level.
func Debugw(msg string, kv ...any) { s().Debugw(msg, kv...) }

// Info logs a plain message at info level.
func Info(args ...any) { s().Info(args...) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { s().Infof(format, args...) }

// Infow logs a message with key-value pairs at info level.
func Infow(msg string, kv ...any) { s().Infow(msg, kv...) }

// Warnw logs a message with key-value pairs at warn level.
func Warnw(msg string, kv ...any) { s().Warnw(msg, kv...) }

// Errorw logs a message with key-value pairs at error level.
func Errorw(msg string, kv ...any) { s().Errorw(msg, kv...) }

// Fatalw logs a message with key-value pairs then exits.
func Fatalw(msg string, kv ...any) { s().Fatalw(msg, kv...) }

// Sync flushes buffered entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}
