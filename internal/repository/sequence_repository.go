package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SequenceRepository is the Postgres counter store for the sequence
// generator. The SELECT ... FOR UPDATE serializes concurrent callers on the
// (prefix, year) row; increment and persist happen inside the same
// transaction so a crash can never repeat or skip a number.
type SequenceRepository struct {
	pool *pgxpool.Pool
}

// NewSequenceRepository instantiates repository.
func NewSequenceRepository(pool *pgxpool.Pool) *SequenceRepository {
	return &SequenceRepository{pool: pool}
}

// Increment returns the next value for (prefix, year). The counter row is
// created at zero on first use; when two callers race to create it, exactly
// one insert wins and the loser re-reads the now-existing row under lock.
func (r *SequenceRepository) Increment(ctx context.Context, prefix string, year int) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const selectForUpdate = `
        SELECT value FROM sequence_counters WHERE prefix=$1 AND year=$2 FOR UPDATE`

	var value int64
	err = tx.QueryRow(ctx, selectForUpdate, prefix, year).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		const insert = `
            INSERT INTO sequence_counters (prefix, year, value)
            VALUES ($1,$2,0)
            ON CONFLICT (prefix, year) DO NOTHING`
		if _, err := tx.Exec(ctx, insert, prefix, year); err != nil {
			return 0, err
		}
		if err := tx.QueryRow(ctx, selectForUpdate, prefix, year).Scan(&value); err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}

	value++

	const update = `
        UPDATE sequence_counters SET value=$3, updated_at=NOW() WHERE prefix=$1 AND year=$2`
	if _, err := tx.Exec(ctx, update, prefix, year, value); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return value, nil
}
