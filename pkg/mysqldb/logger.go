package mysqldb

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger sends gorm's output to logrus. Only failed statements and
// statements slower than the threshold are logged; record-not-found is
// an expected outcome for lookups and stays quiet.
type GormLogger struct {
	logger        *logrus.Logger
	slowThreshold time.Duration
	level         gormlogger.LogLevel
}

func NewGormLogger(l *logrus.Logger, slowThreshold time.Duration) *GormLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}

	return &GormLogger{logger: l, slowThreshold: slowThreshold, level: gormlogger.Warn}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *g
	c.level = level

	return &c
}

func (g *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		g.entry(ctx).Infof(msg, args...)
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.entry(ctx).Warnf(msg, args...)
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		g.entry(ctx).Errorf(msg, args...)
	}
}

func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		sql, rows := fc()
		g.entry(ctx).WithError(err).WithFields(logrus.Fields{
			"sql":        sql,
			"rows":       rows,
			"elapsed_ms": elapsed.Milliseconds(),
		}).Error("mysqldb: statement failed")
	case g.slowThreshold > 0 && elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.entry(ctx).WithFields(logrus.Fields{
			"sql":        sql,
			"rows":       rows,
			"elapsed_ms": elapsed.Milliseconds(),
		}).Warn("mysqldb: slow statement")
	}
}

func (g *GormLogger) entry(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return logrus.NewEntry(g.logger)
	}

	return g.logger.WithContext(ctx)
}
