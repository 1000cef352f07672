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

package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/molthq/molt/pkg/log"
)

// gormLoggerAdapter routes gorm log output through the process logger.
type gormLoggerAdapter struct {
	config gormlogger.Config
	level  gormlogger.LogLevel
}

// NewGormLoggerAdapter builds a gorm logger backed by pkg/log.
func NewGormLoggerAdapter(config gormlogger.Config, level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLoggerAdapter{config: config, level: level}
}

func (l *gormLoggerAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLoggerAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		log.Infof(msg, args...)
	}
}

func (l *gormLoggerAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		log.Warnw("gorm warning", "msg", msg, "args", args)
	}
}

func (l *gormLoggerAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		log.Errorw("gorm error", "msg", msg, "args", args)
	}
}

func (l *gormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error &&
		(!errors.Is(err, gorm.ErrRecordNotFound) || !l.config.IgnoreRecordNotFoundError):
		sql, rows := fc()
		log.Errorw("gorm query failed", "err", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case l.config.SlowThreshold > 0 && elapsed > l.config.SlowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		log.Warnw("gorm slow query", "threshold", l.config.SlowThreshold, "elapsed", elapsed, "rows", rows, "sql", sql)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		log.Debugw("gorm query", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
