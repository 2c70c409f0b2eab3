package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// counterRepository allocates per-prefix sequence numbers from the
// ci_counters table. The single-statement upsert increments the counter
// atomically, so two concurrent creates can never observe the same
// value — unlike counting existing rows.
type counterRepository struct {
	pool *pgxpool.Pool
}

// NewCounterRepository creates a new counter repository
func NewCounterRepository(pool *pgxpool.Pool) CounterRepository {
	return &counterRepository{pool: pool}
}

// Next returns a fresh sequence value for the prefix. Values are
// monotonically increasing and never reused.
func (r *counterRepository) Next(ctx context.Context, prefix string) (int64, error) {
	var value int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ci_counters (prefix, value) VALUES ($1, 1)
		ON CONFLICT (prefix) DO UPDATE SET value = ci_counters.value + 1
		RETURNING value`, prefix,
	).Scan(&value)
	if err != nil {
		return 0, translateError("next ci sequence", err)
	}
	return value, nil
}
