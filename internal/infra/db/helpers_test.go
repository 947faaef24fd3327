package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a migrated SQLite database in a temp dir. One connection
// keeps concurrent writers serialized the way a row lock would.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "shopalerts.db")), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return db
}

func createPriceAlert(t *testing.T, repo *AlertRepository, userID, productID uint, target string) domain.Alert {
	t.Helper()
	alert := domain.NewPriceAlert(userID, productID, decimal.RequireFromString(target), decimal.NewFromInt(120))
	require.NoError(t, repo.Create(context.Background(), alert))
	return *alert
}

func createStockAlert(t *testing.T, repo *AlertRepository, userID, productID uint) domain.Alert {
	t.Helper()
	alert := domain.NewStockAlert(userID, productID, 0)
	require.NoError(t, repo.Create(context.Background(), alert))
	return *alert
}
