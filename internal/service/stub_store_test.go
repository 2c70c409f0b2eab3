package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/cmdbgraph/internal/domain"
)

// stubStore is an in-memory implementation of all four repository
// interfaces behind one mutex, so the same atomicity and uniqueness
// contracts the database enforces hold under concurrent test callers.
type stubStore struct {
	mu            sync.Mutex
	cis           map[uuid.UUID]domain.ConfigurationItem
	codes         map[string]uuid.UUID
	rels          map[uuid.UUID]domain.Relationship
	history       []domain.HistoryEntry
	counters      map[string]int64
	nextHistoryID int64
}

func newStubStore() *stubStore {
	return &stubStore{
		cis:      make(map[uuid.UUID]domain.ConfigurationItem),
		codes:    make(map[string]uuid.UUID),
		rels:     make(map[uuid.UUID]domain.Relationship),
		counters: make(map[string]int64),
	}
}

func (s *stubStore) appendHistoryLocked(entry domain.HistoryEntry) {
	s.nextHistoryID++
	entry.ID = s.nextHistoryID
	s.history = append(s.history, entry)
}

func (s *stubStore) Create(ctx context.Context, ci domain.ConfigurationItem, entry domain.HistoryEntry) (domain.ConfigurationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.codes[ci.CICode]; taken {
		return domain.ConfigurationItem{}, fmt.Errorf("create configuration item: code %s: %w", ci.CICode, domain.ErrDuplicateIdentifier)
	}
	s.cis[ci.ID] = ci
	s.codes[ci.CICode] = ci.ID
	s.appendHistoryLocked(entry)
	return ci, nil
}

func (s *stubStore) GetByID(ctx context.Context, id uuid.UUID) (domain.ConfigurationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ci, ok := s.cis[id]
	if !ok {
		return domain.ConfigurationItem{}, fmt.Errorf("configuration item %s: %w", id, domain.ErrNotFound)
	}
	return ci, nil
}

func (s *stubStore) GetByCode(ctx context.Context, code string) (domain.ConfigurationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.codes[code]
	if !ok {
		return domain.ConfigurationItem{}, fmt.Errorf("configuration item %s: %w", code, domain.ErrNotFound)
	}
	return s.cis[id], nil
}

func (s *stubStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.ConfigurationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ConfigurationItem, 0, len(ids))
	for _, id := range ids {
		if ci, ok := s.cis[id]; ok {
			out = append(out, ci)
		}
	}
	return out, nil
}

func (s *stubStore) Update(ctx context.Context, ci domain.ConfigurationItem, entries []domain.HistoryEntry) (domain.ConfigurationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cis[ci.ID]; !ok {
		return domain.ConfigurationItem{}, fmt.Errorf("configuration item %s: %w", ci.ID, domain.ErrNotFound)
	}
	s.cis[ci.ID] = ci
	for _, entry := range entries {
		s.appendHistoryLocked(entry)
	}
	return ci, nil
}

func (s *stubStore) Dispose(ctx context.Context, id uuid.UUID, actor string, now time.Time) (domain.ConfigurationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ci, ok := s.cis[id]
	if !ok {
		return domain.ConfigurationItem{}, fmt.Errorf("configuration item %s: %w", id, domain.ErrNotFound)
	}
	if ci.Disposed() {
		return ci, nil
	}

	previous := string(ci.Status)
	ci.Status = domain.CIStatusDisposed
	ci.DecommissionDate = &now
	ci.UpdatedAt = now
	ci.UpdatedBy = actor
	s.cis[id] = ci

	for relID, rel := range s.rels {
		if rel.IsActive && (rel.SourceID == id || rel.TargetID == id) {
			rel.IsActive = false
			s.rels[relID] = rel
		}
	}

	entry := domain.NewHistoryEntry(
		id, domain.ChangeTypeDelete,
		"status", previous, string(domain.CIStatusDisposed),
		"CI deleted/decommissioned", actor,
	)
	entry.ChangedAt = now
	s.appendHistoryLocked(entry)
	return ci, nil
}

func (s *stubStore) Search(ctx context.Context, filter domain.CIFilter, page, pageSize int) ([]domain.ConfigurationItem, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.ConfigurationItem
	for _, ci := range s.cis {
		if ci.Disposed() && !filter.IncludeDisposed {
			continue
		}
		if filter.Class != nil && ci.Class != *filter.Class {
			continue
		}
		if filter.Query != "" {
			q := strings.ToLower(filter.Query)
			if !strings.Contains(strings.ToLower(ci.Name), q) && !strings.Contains(strings.ToLower(ci.CICode), q) {
				continue
			}
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ci.Status) {
			continue
		}
		matched = append(matched, ci)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CICode < matched[j].CICode })

	total := int64(len(matched))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []domain.ConfigurationItem{}, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func containsStatus(statuses []domain.CIStatus, status domain.CIStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *stubStore) Statistics(ctx context.Context) (domain.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.Statistics{
		ByClass:  make(map[string]int64),
		ByStatus: make(map[string]int64),
	}
	for _, ci := range s.cis {
		stats.ByStatus[string(ci.Status)]++
		if ci.Disposed() {
			continue
		}
		stats.TotalCIs++
		stats.ByClass[string(ci.Class)]++
	}
	for _, rel := range s.rels {
		if rel.IsActive {
			stats.TotalRelationships++
		}
	}
	return stats, nil
}

func (s *stubStore) CreateRelationship(ctx context.Context, rel domain.Relationship, entry domain.HistoryEntry) (domain.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cis[rel.SourceID]; !ok {
		return domain.Relationship{}, fmt.Errorf("configuration item %s: %w", rel.SourceID, domain.ErrNotFound)
	}
	if _, ok := s.cis[rel.TargetID]; !ok {
		return domain.Relationship{}, fmt.Errorf("configuration item %s: %w", rel.TargetID, domain.ErrNotFound)
	}
	for _, existing := range s.rels {
		if existing.IsActive && existing.SourceID == rel.SourceID && existing.TargetID == rel.TargetID && existing.Type == rel.Type {
			return domain.Relationship{}, fmt.Errorf("create relationship: %w", domain.ErrDuplicateRelationship)
		}
	}
	s.rels[rel.ID] = rel
	s.appendHistoryLocked(entry)
	return rel, nil
}

func (s *stubStore) GetRelationshipByID(ctx context.Context, id uuid.UUID) (domain.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.rels[id]
	if !ok {
		return domain.Relationship{}, fmt.Errorf("relationship %s: %w", id, domain.ErrNotFound)
	}
	return rel, nil
}

func (s *stubStore) Deactivate(ctx context.Context, id uuid.UUID, actor string) (domain.Relationship, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.rels[id]
	if !ok {
		return domain.Relationship{}, false, fmt.Errorf("relationship %s: %w", id, domain.ErrNotFound)
	}
	if !rel.IsActive {
		return rel, false, nil
	}
	rel.IsActive = false
	s.rels[id] = rel

	entry := domain.NewHistoryEntry(
		rel.SourceID, domain.ChangeTypeRelationshipRemove,
		"relationship", rel.ID.String(), "",
		"", actor,
	)
	s.appendHistoryLocked(entry)
	return rel, true, nil
}

func (s *stubStore) ListFor(ctx context.Context, ciID uuid.UUID) ([]domain.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Relationship
	for _, rel := range s.rels {
		if rel.IsActive && (rel.SourceID == ciID || rel.TargetID == ciID) {
			out = append(out, rel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *stubStore) ListActiveFrom(ctx context.Context, ciIDs []uuid.UUID, direction domain.TraversalDirection, types []domain.RelationshipType) ([]domain.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := make(map[uuid.UUID]bool, len(ciIDs))
	for _, id := range ciIDs {
		idSet[id] = true
	}
	typeSet := make(map[domain.RelationshipType]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	var out []domain.Relationship
	for _, rel := range s.rels {
		if !rel.IsActive || !typeSet[rel.Type] {
			continue
		}
		near := rel.SourceID
		if direction == domain.TraverseImpact {
			near = rel.TargetID
		}
		if idSet[near] {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (s *stubStore) List(ctx context.Context, ciID uuid.UUID, fieldFilter string, limit int) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var out []domain.HistoryEntry
	for _, entry := range s.history {
		if entry.CIID != ciID {
			continue
		}
		if fieldFilter != "" && (entry.FieldName == nil || *entry.FieldName != fieldFilter) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ChangedAt.Equal(out[j].ChangedAt) {
			return out[i].ChangedAt.After(out[j].ChangedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubStore) Next(ctx context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[prefix]++
	return s.counters[prefix], nil
}

// relStub adapts stubStore to the relationship repository interface,
// whose Create and GetByID collide with the CI repository's names.
type relStub struct{ *stubStore }

func (r relStub) Create(ctx context.Context, rel domain.Relationship, entry domain.HistoryEntry) (domain.Relationship, error) {
	return r.stubStore.CreateRelationship(ctx, rel, entry)
}

func (r relStub) GetByID(ctx context.Context, id uuid.UUID) (domain.Relationship, error) {
	return r.stubStore.GetRelationshipByID(ctx, id)
}

// newServices wires the full service layer over one stub store.
func newServices(store *stubStore) (*CIService, *RelationshipService, *ImpactService) {
	allocator := NewAllocator(store)
	cis := NewCIService(store, store, allocator)
	rels := NewRelationshipService(relStub{store}, store)
	impact := NewImpactService(store, relStub{store})
	return cis, rels, impact
}
