package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpattn/cmdbgraph/internal/domain"
	"github.com/rpattn/cmdbgraph/internal/repository"
)

// RelationshipService manages the typed, directed edges of the CI graph.
// Cycles are legal at write time; cycle safety is a traversal concern.
type RelationshipService struct {
	rels repository.RelationshipRepository
	cis  repository.CIRepository
}

// NewRelationshipService creates the relationship graph service.
func NewRelationshipService(rels repository.RelationshipRepository, cis repository.CIRepository) *RelationshipService {
	return &RelationshipService{rels: rels, cis: cis}
}

// Create adds an active edge from source to target. Both endpoints must
// exist; an active edge with the same (source, target, type) is rejected
// with ErrDuplicateRelationship — under concurrent writers the store's
// unique constraint closes the check-then-insert gap.
func (s *RelationshipService) Create(ctx context.Context, sourceID, targetID uuid.UUID, relType domain.RelationshipType, description, actor string) (domain.Relationship, error) {
	if !relType.Valid() {
		return domain.Relationship{}, fmt.Errorf("invalid relationship type %q", relType)
	}

	source, err := s.cis.GetByID(ctx, sourceID)
	if err != nil {
		return domain.Relationship{}, fmt.Errorf("source CI %s: %w", sourceID, err)
	}
	target, err := s.cis.GetByID(ctx, targetID)
	if err != nil {
		return domain.Relationship{}, fmt.Errorf("target CI %s: %w", targetID, err)
	}

	rel := domain.NewRelationship(sourceID, targetID, relType, description, actor)
	entry := domain.NewHistoryEntry(
		sourceID, domain.ChangeTypeRelationshipAdd,
		"relationship", "", fmt.Sprintf("%s -> %s", source.CICode, target.CICode),
		"", actor,
	)
	entry.ChangedAt = rel.CreatedAt

	return s.rels.Create(ctx, rel, entry)
}

// Delete soft-deletes an edge. Deleting an inactive edge succeeds
// without effect.
func (s *RelationshipService) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	_, _, err := s.rels.Deactivate(ctx, id, actor)
	return err
}

// ListFor returns all active relationships where the CI is source or
// target.
func (s *RelationshipService) ListFor(ctx context.Context, ciID uuid.UUID) ([]domain.Relationship, error) {
	return s.rels.ListFor(ctx, ciID)
}
