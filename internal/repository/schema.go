package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Money columns are TEXT on sqlite so amounts keep their exact digits.
func moneyType(driverName string) string {
	if driverName == "sqlite3" {
		return "TEXT"
	}
	return "NUMERIC(20,2)"
}

// Rates keep six places so the stored rate is the one the installment was built from.
func rateType(driverName string) string {
	if driverName == "sqlite3" {
		return "TEXT"
	}
	return "NUMERIC(20,6)"
}

func schema(driverName string) []string {
	money := moneyType(driverName)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS loans (
			id VARCHAR(36) PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			principal %[1]s NOT NULL,
			term_weeks INTEGER NOT NULL,
			annual_rate %[2]s NOT NULL,
			weekly_payment %[1]s NOT NULL,
			balance_remaining %[1]s NOT NULL,
			status INTEGER NOT NULL DEFAULT 0,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, money, rateType(driverName)),
		`CREATE INDEX IF NOT EXISTS idx_loans_owner_id ON loans (owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_status ON loans (status)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS loan_payments (
			id VARCHAR(36) PRIMARY KEY,
			loan_id VARCHAR(36) NOT NULL REFERENCES loans (id),
			sequence INTEGER NOT NULL,
			amount_paid %[1]s NOT NULL,
			balance_after %[1]s NOT NULL,
			paid_at TIMESTAMP NOT NULL
		)`, money),
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_loan_payments_loan_sequence ON loan_payments (loan_id, sequence)`,
	}
}

// Migrate creates the ledger tables when they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schema(db.DriverName()) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	return tx.Commit()
}
