package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/cmdbgraph/internal/domain"
)

// historyRepository reads the append-only ci_history ledger. Writes go
// through insertHistoryTx inside the mutation transactions, so the
// ledger can never disagree with the mutation it describes.
type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

const historyColumns = `id, ci_id, change_type, field_name, old_value, new_value, change_reason, changed_by, changed_at`

// List returns ledger entries for a CI newest-first. Entries written in
// the same millisecond are disambiguated by their sequential id.
func (r *historyRepository) List(ctx context.Context, ciID uuid.UUID, fieldFilter string, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error
	if fieldFilter != "" {
		rows, err = r.pool.Query(ctx, `
			SELECT `+historyColumns+` FROM ci_history
			WHERE ci_id = $1 AND field_name = $2
			ORDER BY changed_at DESC, id DESC LIMIT $3`,
			ciID, fieldFilter, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+historyColumns+` FROM ci_history
			WHERE ci_id = $1
			ORDER BY changed_at DESC, id DESC LIMIT $2`,
			ciID, limit)
	}
	if err != nil {
		return nil, translateError("list history", err)
	}
	defer rows.Close()

	entries := []domain.HistoryEntry{}
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(
			&entry.ID, &entry.CIID, &entry.ChangeType, &entry.FieldName,
			&entry.OldValue, &entry.NewValue, &entry.ChangeReason,
			&entry.ChangedBy, &entry.ChangedAt,
		); err != nil {
			return nil, translateError("list history", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list history", err)
	}

	return entries, nil
}

// insertHistoryTx appends one ledger entry within a mutation transaction.
func insertHistoryTx(ctx context.Context, tx pgx.Tx, entry domain.HistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ci_history (ci_id, change_type, field_name, old_value, new_value, change_reason, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.CIID, entry.ChangeType, entry.FieldName, entry.OldValue,
		entry.NewValue, entry.ChangeReason, entry.ChangedBy, entry.ChangedAt,
	)
	if err != nil {
		return translateError("record history", err)
	}
	return nil
}
