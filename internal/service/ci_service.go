package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/cmdbgraph/internal/domain"
	"github.com/rpattn/cmdbgraph/internal/repository"
)

// CreateCIRequest carries the caller-supplied fields for a new CI.
// CICode is optional; when empty the allocator assigns one.
type CreateCIRequest struct {
	CICode       string               `json:"ci_code,omitempty"`
	Name         string               `json:"name"`
	Description  string               `json:"description,omitempty"`
	Class        domain.CIClass       `json:"ci_class"`
	CIType       string               `json:"ci_type,omitempty"`
	Status       domain.CIStatus      `json:"status,omitempty"`
	Criticality  domain.CICriticality `json:"criticality,omitempty"`
	Environment  string               `json:"environment,omitempty"`
	Location     string               `json:"location,omitempty"`
	Owner        string               `json:"owner,omitempty"`
	SupportGroup string               `json:"support_group,omitempty"`
	Attributes   map[string]any       `json:"attributes,omitempty"`
	Tags         []string             `json:"tags,omitempty"`
}

// CIService is the CI store: create, point lookups, field-diffed
// updates, soft delete with relationship cascade, search, statistics.
// Every mutation writes to the history ledger in the same transaction.
type CIService struct {
	cis       repository.CIRepository
	history   repository.HistoryRepository
	allocator *Allocator
}

// NewCIService creates the CI store service.
func NewCIService(cis repository.CIRepository, history repository.HistoryRepository, allocator *Allocator) *CIService {
	return &CIService{cis: cis, history: history, allocator: allocator}
}

// Create inserts a new CI. A caller-supplied code is used verbatim and
// rejected with ErrDuplicateIdentifier when taken; otherwise codes come
// from the allocator, retrying on collision with manually occupied slots
// up to the allocation bound.
func (s *CIService) Create(ctx context.Context, req CreateCIRequest, actor string) (domain.ConfigurationItem, error) {
	if !req.Class.Valid() {
		return domain.ConfigurationItem{}, fmt.Errorf("invalid CI class %q", req.Class)
	}
	if req.Name == "" {
		return domain.ConfigurationItem{}, fmt.Errorf("name is required")
	}

	ci := domain.NewConfigurationItem(req.Class, req.Name, actor)
	ci.Description = req.Description
	ci.CIType = req.CIType
	if req.Status != "" {
		ci.Status = req.Status
	}
	if req.Criticality != "" {
		ci.Criticality = req.Criticality
	}
	ci.Environment = req.Environment
	ci.Location = req.Location
	ci.Owner = req.Owner
	ci.SupportGroup = req.SupportGroup
	if req.Attributes != nil {
		ci.Attributes = req.Attributes
	}
	ci.Tags = req.Tags

	if req.CICode != "" {
		ci.CICode = req.CICode
		return s.insertWithHistory(ctx, ci, actor)
	}

	for attempt := 0; attempt < maxAllocAttempts; attempt++ {
		code, err := s.allocator.Allocate(ctx, req.Class)
		if err != nil {
			return domain.ConfigurationItem{}, err
		}
		ci.CICode = code

		created, err := s.insertWithHistory(ctx, ci, actor)
		if errors.Is(err, domain.ErrDuplicateIdentifier) {
			// A custom code occupies this sequence slot; take the next one.
			continue
		}
		return created, err
	}

	return domain.ConfigurationItem{}, fmt.Errorf("could not allocate a free code for class %s: %w", req.Class, domain.ErrAllocationExhausted)
}

func (s *CIService) insertWithHistory(ctx context.Context, ci domain.ConfigurationItem, actor string) (domain.ConfigurationItem, error) {
	snapshot, err := ci.Snapshot()
	if err != nil {
		return domain.ConfigurationItem{}, err
	}
	entry := domain.NewHistoryEntry(ci.ID, domain.ChangeTypeCreate, "", "", snapshot, "", actor)
	entry.ChangedAt = ci.CreatedAt
	return s.cis.Create(ctx, ci, entry)
}

// Get looks up a CI by id. Absence is not an error: the result is nil.
func (s *CIService) Get(ctx context.Context, id uuid.UUID) (*domain.ConfigurationItem, error) {
	ci, err := s.cis.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ci, nil
}

// GetByCode looks up a CI by its code. Absence is not an error.
func (s *CIService) GetByCode(ctx context.Context, code string) (*domain.ConfigurationItem, error) {
	ci, err := s.cis.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ci, nil
}

// Update applies a partial update, writing one Update history entry per
// field whose serialized value changed. A no-op update writes nothing.
func (s *CIService) Update(ctx context.Context, id uuid.UUID, update domain.CIUpdate, actor string) (domain.ConfigurationItem, error) {
	current, err := s.cis.GetByID(ctx, id)
	if err != nil {
		return domain.ConfigurationItem{}, err
	}

	now := time.Now().UTC()
	updated, changes := update.Apply(current, actor, now)
	if len(changes) == 0 {
		return current, nil
	}

	entries := make([]domain.HistoryEntry, len(changes))
	for i, change := range changes {
		entry := domain.NewHistoryEntry(
			id, domain.ChangeTypeUpdate,
			change.Field, change.OldValue, change.NewValue,
			update.ChangeReason, actor,
		)
		entry.ChangedAt = now
		entries[i] = entry
	}

	return s.cis.Update(ctx, updated, entries)
}

// Delete soft-deletes the CI: status becomes Disposed, the decommission
// date is stamped, and every incident relationship is deactivated. The
// CI record and its history persist. Idempotent.
func (s *CIService) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	_, err := s.cis.Dispose(ctx, id, actor, time.Now().UTC())
	return err
}

// Search returns a filtered, paginated CI listing with the total count.
// Disposed CIs are excluded unless the filter requests them.
func (s *CIService) Search(ctx context.Context, filter domain.CIFilter, page, pageSize int) ([]domain.ConfigurationItem, int64, error) {
	return s.cis.Search(ctx, filter, page, pageSize)
}

// History returns the audit ledger for a CI, newest-first.
func (s *CIService) History(ctx context.Context, id uuid.UUID, fieldFilter string, limit int) ([]domain.HistoryEntry, error) {
	return s.history.List(ctx, id, fieldFilter, limit)
}

// Statistics returns inventory counts by class and status.
func (s *CIService) Statistics(ctx context.Context) (domain.Statistics, error) {
	return s.cis.Statistics(ctx)
}
