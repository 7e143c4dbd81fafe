package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/segyhp/loan-ledger/internal/database"
	"github.com/segyhp/loan-ledger/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "ledger.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db))
	return db
}

func newTestLoan(ownerID string, createdAt time.Time) *domain.Loan {
	return domain.NewLoan(
		ownerID,
		decimal.NewFromInt(500),
		5,
		decimal.NewFromInt(10),
		decimal.RequireFromString("100.58"),
		createdAt,
	)
}
