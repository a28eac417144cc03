package store

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartcore/pkg/domain"
	"smartcore/pkg/platform/tx"
)

// PostgresArchive mirrors ledger checkpoints into Postgres for offline
// analytics and audits. The in-memory series stays authoritative for
// lookups; this sink is write-only.
//
// Schema:
//
//	CREATE TABLE ledger_checkpoints (
//	    account   TEXT   NOT NULL,
//	    timepoint BIGINT NOT NULL,
//	    value     NUMERIC(78) NOT NULL,
//	    PRIMARY KEY (account, timepoint)
//	);
//
// The zero address row carries the total-supply series.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

// NewPostgresArchive wraps an existing connection pool.
func NewPostgresArchive(pool *pgxpool.Pool) *PostgresArchive {
	return &PostgresArchive{pool: pool}
}

// AppendCheckpoint upserts one (account, timepoint) row. The upsert gives
// the same last-write-wins behavior as the in-memory series.
func (a *PostgresArchive) AppendCheckpoint(ctx context.Context, account domain.Address, timepoint uint64, value *uint256.Int) error {
	_, err := tx.Select(ctx, a.pool).Exec(ctx, `
		INSERT INTO ledger_checkpoints (account, timepoint, value)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (account, timepoint) DO UPDATE SET value = EXCLUDED.value`,
		account.String(), int64(timepoint), value.Dec())
	if err != nil {
		return fmt.Errorf("append checkpoint: %w", err)
	}
	return nil
}
