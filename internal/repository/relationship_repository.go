package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/cmdbgraph/internal/domain"
)

// relationshipRepository implements RelationshipRepository backed by
// Postgres. Uniqueness of active (source, target, type) triples is
// enforced by a partial unique index, not by the application check.
type relationshipRepository struct {
	pool *pgxpool.Pool
}

// NewRelationshipRepository creates a new relationship repository
func NewRelationshipRepository(pool *pgxpool.Pool) RelationshipRepository {
	return &relationshipRepository{pool: pool}
}

const relationshipColumns = `id, source_id, target_id, relationship_type, description, is_active, created_at, created_by`

// Create inserts an active edge and its RelationshipAdd history entry.
func (r *relationshipRepository) Create(ctx context.Context, rel domain.Relationship, entry domain.HistoryEntry) (domain.Relationship, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Relationship{}, translateError("create relationship", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO ci_relationships (
			id, source_id, target_id, relationship_type, description, is_active, created_at, created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+relationshipColumns,
		rel.ID, rel.SourceID, rel.TargetID, rel.Type, rel.Description, rel.IsActive, rel.CreatedAt, rel.CreatedBy,
	)

	created, err := scanRelationship(row)
	if err != nil {
		return domain.Relationship{}, translateError("create relationship", err)
	}

	if err := insertHistoryTx(ctx, tx, entry); err != nil {
		return domain.Relationship{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Relationship{}, translateError("create relationship", err)
	}

	return created, nil
}

// GetByID retrieves a relationship by id.
func (r *relationshipRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Relationship, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+relationshipColumns+` FROM ci_relationships WHERE id = $1`, id)
	rel, err := scanRelationship(row)
	if err != nil {
		return domain.Relationship{}, translateError("get relationship", err)
	}
	return rel, nil
}

// Deactivate soft-deletes the edge and records the removal against the
// source CI. Inactive edges are left untouched.
func (r *relationshipRepository) Deactivate(ctx context.Context, id uuid.UUID, actor string) (domain.Relationship, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Relationship{}, false, translateError("deactivate relationship", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+relationshipColumns+` FROM ci_relationships WHERE id = $1 FOR UPDATE`, id)
	rel, err := scanRelationship(row)
	if err != nil {
		return domain.Relationship{}, false, translateError("deactivate relationship", err)
	}

	if !rel.IsActive {
		// Idempotent: deleting an already-inactive edge succeeds quietly.
		return rel, false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `UPDATE ci_relationships SET is_active = FALSE WHERE id = $1`, id); err != nil {
		return domain.Relationship{}, false, translateError("deactivate relationship", err)
	}
	rel.IsActive = false

	entry := domain.NewHistoryEntry(
		rel.SourceID, domain.ChangeTypeRelationshipRemove,
		"relationship", rel.ID.String(), "", "", actor,
	)
	entry.ChangedAt = time.Now().UTC()
	if err := insertHistoryTx(ctx, tx, entry); err != nil {
		return domain.Relationship{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Relationship{}, false, translateError("deactivate relationship", err)
	}

	return rel, true, nil
}

// ListFor returns every active edge touching the CI.
func (r *relationshipRepository) ListFor(ctx context.Context, ciID uuid.UUID) ([]domain.Relationship, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+relationshipColumns+` FROM ci_relationships
		WHERE (source_id = $1 OR target_id = $1) AND is_active
		ORDER BY created_at ASC`, ciID)
	if err != nil {
		return nil, translateError("list relationships", err)
	}
	defer rows.Close()

	return collectRelationships(rows, "list relationships")
}

// ListActiveFrom returns active edges leaving a traversal frontier.
func (r *relationshipRepository) ListActiveFrom(ctx context.Context, ciIDs []uuid.UUID, direction domain.TraversalDirection, types []domain.RelationshipType) ([]domain.Relationship, error) {
	if len(ciIDs) == 0 {
		return []domain.Relationship{}, nil
	}

	column := "source_id"
	if direction == domain.TraverseImpact {
		column = "target_id"
	}

	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+relationshipColumns+` FROM ci_relationships
		WHERE `+column+` = ANY($1) AND relationship_type = ANY($2) AND is_active`,
		ciIDs, typeNames)
	if err != nil {
		return nil, translateError("list frontier relationships", err)
	}
	defer rows.Close()

	return collectRelationships(rows, "list frontier relationships")
}

func collectRelationships(rows pgx.Rows, op string) ([]domain.Relationship, error) {
	rels := []domain.Relationship{}
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, translateError(op, err)
		}
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(op, err)
	}
	return rels, nil
}

func scanRelationship(row pgx.Row) (domain.Relationship, error) {
	var rel domain.Relationship
	err := row.Scan(
		&rel.ID, &rel.SourceID, &rel.TargetID, &rel.Type,
		&rel.Description, &rel.IsActive, &rel.CreatedAt, &rel.CreatedBy,
	)
	if err != nil {
		return domain.Relationship{}, err
	}
	return rel, nil
}
