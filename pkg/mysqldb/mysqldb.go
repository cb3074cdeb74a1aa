// Package mysqldb opens the state store and hands out gorm handles.
package mysqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/vmindtech/vdb/config"
)

const (
	defaultMaxIdleConns    = 10
	defaultMaxOpenConns    = 100
	defaultConnMaxLifetime = time.Hour

	driverName = "mysql"
)

type IMysqlInstance interface {
	Database() *gorm.DB
	Close() error
	Ping(ctx context.Context) error
}

type mysqlInstance struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// InitMysqlDB connects, applies the pool settings and verifies the server
// answers. Zero pool values fall back to the defaults.
func InitMysqlDB(l *logrus.Logger, cfg config.MysqlDBConfig) (IMysqlInstance, error) {
	sqlDB, err := sql.Open(driverName, cfg.URL)
	if err != nil {
		return nil, err
	}

	if err = sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	sqlDB.SetConnMaxLifetime(orDuration(cfg.ConnMaxLifetime, defaultConnMaxLifetime))
	sqlDB.SetMaxOpenConns(orInt(cfg.MaxOpenConns, defaultMaxOpenConns))
	sqlDB.SetMaxIdleConns(orInt(cfg.MaxIdleConns, defaultMaxIdleConns))

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB}), &gorm.Config{
		Logger: NewGormLogger(l, cfg.SlowQueryThreshold),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &mysqlInstance{
		db:    db,
		sqlDB: sqlDB,
	}, nil
}

// FromGorm wraps an open gorm handle. Transactions and test databases use it
// so repositories can run unchanged on top of them.
func FromGorm(db *gorm.DB) IMysqlInstance {
	return &mysqlInstance{db: db}
}

func (m mysqlInstance) Database() *gorm.DB {
	return m.db
}

func (m mysqlInstance) Close() error {
	if m.sqlDB == nil {
		return nil
	}

	return m.sqlDB.Close()
}

func (m mysqlInstance) Ping(ctx context.Context) error {
	if m.sqlDB != nil {
		return m.sqlDB.PingContext(ctx)
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}

	return def
}

func orDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}

	return def
}
