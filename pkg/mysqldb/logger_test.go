package mysqldb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func statement() (string, int64) {
	return "SELECT 1", 1
}

func TestGormLoggerReportsFailures(t *testing.T) {
	l, hook := test.NewNullLogger()
	g := NewGormLogger(l, 0)

	g.Trace(context.Background(), time.Now(), statement, errors.New("deadlock"))

	if assert.Len(t, hook.AllEntries(), 1) {
		assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
		assert.Equal(t, "SELECT 1", hook.LastEntry().Data["sql"])
	}
}

func TestGormLoggerIgnoresRecordNotFound(t *testing.T) {
	l, hook := test.NewNullLogger()
	g := NewGormLogger(l, 0)

	g.Trace(context.Background(), time.Now(), statement, gorm.ErrRecordNotFound)

	assert.Empty(t, hook.AllEntries())
}

func TestGormLoggerSlowStatements(t *testing.T) {
	l, hook := test.NewNullLogger()
	g := NewGormLogger(l, time.Millisecond)

	g.Trace(context.Background(), time.Now().Add(-time.Second), statement, nil)
	g.Trace(context.Background(), time.Now(), statement, nil)

	if assert.Len(t, hook.AllEntries(), 1) {
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	}
}

func TestGormLoggerSilent(t *testing.T) {
	l, hook := test.NewNullLogger()
	g := NewGormLogger(l, time.Millisecond).LogMode(gormlogger.Silent)

	g.Trace(context.Background(), time.Now().Add(-time.Second), statement, errors.New("boom"))
	g.Error(context.Background(), "boom")

	assert.Empty(t, hook.AllEntries())
}
