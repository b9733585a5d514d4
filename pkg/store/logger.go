package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"tilecov/pkg/logger"
)

// Queries slower than this are logged at warn level even when query
// tracing is off.
const slowQueryThreshold = time.Second

// gormLogger routes gorm's internal logging through the application
// logger. Per-query tracing is gated on LogQueries so normal runs stay
// quiet.
type gormLogger struct {
	log        logger.Logger
	logQueries bool
	level      gormlogger.LogLevel
}

func newGormLogger(log logger.Logger, logQueries bool) gormlogger.Interface {
	level := gormlogger.Warn
	if logQueries {
		level = gormlogger.Info
	}
	return &gormLogger{log: log, logQueries: logQueries, level: level}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !stderrors.Is(err, gormlogger.ErrRecordNotFound):
		sql, rows := fc()
		l.log.ErrorWithFields("query failed", map[string]interface{}{
			"sql":     sql,
			"rows":    rows,
			"elapsed": elapsed,
			"error":   err.Error(),
		})
	case elapsed > slowQueryThreshold:
		sql, rows := fc()
		l.log.WarnWithFields("slow query", map[string]interface{}{
			"sql":     sql,
			"rows":    rows,
			"elapsed": elapsed,
		})
	case l.logQueries:
		sql, rows := fc()
		l.log.DebugWithFields("query", map[string]interface{}{
			"sql":     sql,
			"rows":    rows,
			"elapsed": elapsed,
		})
	}
}
