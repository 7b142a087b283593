package settlement

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/okian/bullrun/internal/domain/reward"
)

const schema = `
CREATE TABLE IF NOT EXISTS settlements (
    batch_id   TEXT    NOT NULL,
    round_id   TEXT    NOT NULL,
    player_id  TEXT    NOT NULL,
    rank       INTEGER NOT NULL,
    amount     TEXT    NOT NULL,
    class      TEXT    NOT NULL,
    created_at DATETIME NOT NULL,
    PRIMARY KEY (batch_id, player_id)
);

CREATE INDEX IF NOT EXISTS idx_settlements_round ON settlements(round_id, rank);
`

// SQLiteSink persists batches to a SQLite table for an external payer to
// pick up. Amounts are stored as decimal strings.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("settlement.OpenSQLite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("settlement.OpenSQLite: apply schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Deliver implements Sink. Re-delivering a batch is a no-op.
func (s *SQLiteSink) Deliver(ctx context.Context, b Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrDelivery, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO settlements (batch_id, round_id, player_id, rank, amount, class, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", ErrDelivery, err)
	}
	defer stmt.Close()

	created := b.CreatedAt.UTC().Format(time.RFC3339)
	for _, a := range b.Allocations {
		if _, err := stmt.ExecContext(ctx, b.ID, b.RoundID, a.PlayerID, a.Rank, a.Amount.String(), string(a.Class), created); err != nil {
			return fmt.Errorf("%w: insert %s: %w", ErrDelivery, a.PlayerID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrDelivery, err)
	}
	return nil
}

// Payouts returns the stored allocations of a round in rank order.
func (s *SQLiteSink) Payouts(ctx context.Context, roundID string) ([]reward.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT player_id, rank, amount, class FROM settlements
		WHERE round_id = ? ORDER BY rank`, roundID)
	if err != nil {
		return nil, fmt.Errorf("settlement.Payouts: %w", err)
	}
	defer rows.Close()

	var out []reward.Allocation
	for rows.Next() {
		var (
			a      reward.Allocation
			amount string
			class  string
		)
		if err := rows.Scan(&a.PlayerID, &a.Rank, &amount, &class); err != nil {
			return nil, fmt.Errorf("settlement.Payouts: scan: %w", err)
		}
		if a.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("settlement.Payouts: amount %q: %w", amount, err)
		}
		a.Class = reward.Class(class)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
