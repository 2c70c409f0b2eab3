package repository

import (
	"context"
	"time"

	"github.com/rpattn/cmdbgraph/internal/domain"

	"github.com/google/uuid"
)

// CIRepository defines the interface for configuration item persistence.
// Mutations take the history entries describing them so the record and
// its audit trail commit atomically.
type CIRepository interface {
	// Create inserts a CI and its Create history entry. Returns
	// domain.ErrDuplicateIdentifier when the CI code is already taken.
	Create(ctx context.Context, ci domain.ConfigurationItem, entry domain.HistoryEntry) (domain.ConfigurationItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ConfigurationItem, error)
	GetByCode(ctx context.Context, code string) (domain.ConfigurationItem, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.ConfigurationItem, error)
	// Update applies the already-diffed CI and appends one Update history
	// entry per changed field.
	Update(ctx context.Context, ci domain.ConfigurationItem, entries []domain.HistoryEntry) (domain.ConfigurationItem, error)
	// Dispose soft-deletes the CI, deactivates every relationship where
	// it is source or target, and appends the Delete history entry, all
	// in one transaction. Disposing an already-Disposed CI is a no-op.
	Dispose(ctx context.Context, id uuid.UUID, actor string, now time.Time) (domain.ConfigurationItem, error)
	Search(ctx context.Context, filter domain.CIFilter, page, pageSize int) ([]domain.ConfigurationItem, int64, error)
	Statistics(ctx context.Context) (domain.Statistics, error)
}

// RelationshipRepository defines the interface for CI graph edges.
type RelationshipRepository interface {
	// Create inserts an active edge and its RelationshipAdd history
	// entry. The partial unique index on active triples turns the
	// duplicate race into domain.ErrDuplicateRelationship; missing
	// endpoints surface as domain.ErrNotFound.
	Create(ctx context.Context, rel domain.Relationship, entry domain.HistoryEntry) (domain.Relationship, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Relationship, error)
	// Deactivate soft-deletes the edge and appends the
	// RelationshipRemove entry. Deactivating an inactive edge is a
	// no-op; the returned bool reports whether the edge was active.
	Deactivate(ctx context.Context, id uuid.UUID, actor string) (domain.Relationship, bool, error)
	// ListFor returns all active relationships where the CI is source or
	// target.
	ListFor(ctx context.Context, ciID uuid.UUID) ([]domain.Relationship, error)
	// ListActiveFrom returns the active edges leaving a traversal
	// frontier: edges whose source (Dependencies) or target (Impact) is
	// one of the given CIs, restricted to the type allow-list.
	ListActiveFrom(ctx context.Context, ciIDs []uuid.UUID, direction domain.TraversalDirection, types []domain.RelationshipType) ([]domain.Relationship, error)
}

// HistoryRepository reads the append-only audit ledger. There is no
// update or delete path by design.
type HistoryRepository interface {
	// List returns entries for the CI newest-first, optionally filtered
	// to one field name.
	List(ctx context.Context, ciID uuid.UUID, fieldFilter string, limit int) ([]domain.HistoryEntry, error)
}

// CounterRepository allocates monotonically increasing per-prefix
// sequence numbers. Next must be atomic under concurrent callers.
type CounterRepository interface {
	Next(ctx context.Context, prefix string) (int64, error)
}
