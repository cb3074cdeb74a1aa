// Package repositorytest opens throwaway databases for repository and
// service tests.
package repositorytest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/pkg/mysqldb"
)

// NewDB returns an in-memory database with every table migrated. A single
// connection keeps the memory database alive and serialises transactions.
func NewDB(t testing.TB) mysqldb.IMysqlInstance {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))

	return mysqldb.FromGorm(db)
}
