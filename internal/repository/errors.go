package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rpattn/cmdbgraph/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	ciCodeUniqueIndex       = "idx_configuration_items_ci_code"
	relationshipTripleIndex = "idx_ci_relationships_active_triple"
	relationshipSourceFK    = "ci_relationships_source_id_fkey"
	relationshipTargetFK    = "ci_relationships_target_id_fkey"
)

// translateError maps driver errors onto the domain error kinds. The
// store-level constraints are the source of truth for uniqueness, so
// constraint violations become the corresponding duplicate errors;
// anything unrecognized is treated as a transient store failure.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			switch pgErr.ConstraintName {
			case ciCodeUniqueIndex:
				return fmt.Errorf("%s: %w", op, domain.ErrDuplicateIdentifier)
			case relationshipTripleIndex:
				return fmt.Errorf("%s: %w", op, domain.ErrDuplicateRelationship)
			}
		case pgForeignKeyViolation:
			switch pgErr.ConstraintName {
			case relationshipSourceFK, relationshipTargetFK:
				return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
			}
		}
	}

	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
