package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/rpattn/cmdbgraph/internal/domain"
	"github.com/rpattn/cmdbgraph/internal/repository"
)

// ImpactService answers "what does this CI depend on" and "what depends
// on this CI" by bounded breadth-first traversal of the relationship
// graph. The visited set makes the walk cycle-safe; user-entered
// dependency data cannot be assumed acyclic.
type ImpactService struct {
	cis  repository.CIRepository
	rels repository.RelationshipRepository
}

// NewImpactService creates the impact analysis engine.
func NewImpactService(cis repository.CIRepository, rels repository.RelationshipRepository) *ImpactService {
	return &ImpactService{cis: cis, rels: rels}
}

// Dependencies returns the CIs the given CI needs, following edges where
// the frontier node is the source.
func (s *ImpactService) Dependencies(ctx context.Context, ciID uuid.UUID, maxDepth int, types []domain.RelationshipType) (domain.ImpactResult, error) {
	return s.traverse(ctx, ciID, maxDepth, types, domain.TraverseDependencies)
}

// Impact returns the CIs that need the given CI — what breaks if it
// fails — following edges where the frontier node is the target.
func (s *ImpactService) Impact(ctx context.Context, ciID uuid.UUID, maxDepth int, types []domain.RelationshipType) (domain.ImpactResult, error) {
	return s.traverse(ctx, ciID, maxDepth, types, domain.TraverseImpact)
}

type frontierEntry struct {
	ci   domain.ConfigurationItem
	path []string
}

func (s *ImpactService) traverse(ctx context.Context, ciID uuid.UUID, maxDepth int, types []domain.RelationshipType, direction domain.TraversalDirection) (domain.ImpactResult, error) {
	if maxDepth == 0 {
		maxDepth = domain.DefaultTraversalDepth
	}
	if maxDepth < domain.MinTraversalDepth || maxDepth > domain.MaxTraversalDepth {
		return domain.ImpactResult{}, fmt.Errorf("depth %d: %w", maxDepth, domain.ErrInvalidDepth)
	}
	if len(types) == 0 {
		types = domain.DefaultTraversalTypes()
	}

	root, err := s.cis.GetByID(ctx, ciID)
	if err != nil {
		return domain.ImpactResult{}, err
	}

	result := domain.ImpactResult{
		SourceCI: root,
		Items:    []domain.ImpactedCI{},
	}

	visited := map[uuid.UUID]bool{root.ID: true}
	frontier := []frontierEntry{{ci: root, path: []string{root.CICode}}}

	// Level-by-level BFS: each pass fetches the whole frontier's edges
	// and endpoint CIs in two batched queries.
	for distance := 1; distance <= maxDepth && len(frontier) > 0; distance++ {
		frontierIDs := make([]uuid.UUID, len(frontier))
		for i, entry := range frontier {
			frontierIDs[i] = entry.ci.ID
		}

		edges, err := s.rels.ListActiveFrom(ctx, frontierIDs, direction, types)
		if err != nil {
			return domain.ImpactResult{}, err
		}
		if len(edges) == 0 {
			break
		}

		edgesByNear := make(map[uuid.UUID][]domain.Relationship)
		farIDSet := make(map[uuid.UUID]bool)
		for _, edge := range edges {
			near, far := endpoints(edge, direction)
			edgesByNear[near] = append(edgesByNear[near], edge)
			if !visited[far] {
				farIDSet[far] = true
			}
		}

		farIDs := make([]uuid.UUID, 0, len(farIDSet))
		for id := range farIDSet {
			farIDs = append(farIDs, id)
		}
		farCIs, err := s.cis.GetByIDs(ctx, farIDs)
		if err != nil {
			return domain.ImpactResult{}, err
		}
		ciByID := make(map[uuid.UUID]domain.ConfigurationItem, len(farCIs))
		for _, ci := range farCIs {
			ciByID[ci.ID] = ci
		}

		// First discovery wins: frontier entries are already in code
		// order from the previous level, and each entry's edges are
		// sorted by far-endpoint code, so discovery is deterministic.
		discovered := make(map[uuid.UUID]domain.ImpactedCI)
		for _, entry := range frontier {
			entryEdges := edgesByNear[entry.ci.ID]
			sort.Slice(entryEdges, func(i, j int) bool {
				_, fi := endpoints(entryEdges[i], direction)
				_, fj := endpoints(entryEdges[j], direction)
				ci, cj := ciByID[fi].CICode, ciByID[fj].CICode
				if ci != cj {
					return ci < cj
				}
				return entryEdges[i].Type < entryEdges[j].Type
			})

			for _, edge := range entryEdges {
				_, farID := endpoints(edge, direction)
				if visited[farID] {
					continue
				}
				if _, seen := discovered[farID]; seen {
					continue
				}
				far, ok := ciByID[farID]
				if !ok || far.Disposed() {
					// Disposed CIs stay out of traversal results even
					// when an active edge still references them.
					continue
				}

				path := make([]string, len(entry.path)+1)
				copy(path, entry.path)
				path[len(entry.path)] = far.CICode

				discovered[farID] = domain.ImpactedCI{
					CI:               far,
					Distance:         distance,
					Path:             path,
					RelationshipType: edge.Type,
				}
			}
		}

		level := make([]domain.ImpactedCI, 0, len(discovered))
		for _, item := range discovered {
			level = append(level, item)
		}
		// Ties at equal distance are ordered by CI code.
		sort.Slice(level, func(i, j int) bool {
			return level[i].CI.CICode < level[j].CI.CICode
		})

		frontier = frontier[:0]
		for _, item := range level {
			visited[item.CI.ID] = true
			result.Items = append(result.Items, item)
			frontier = append(frontier, frontierEntry{ci: item.CI, path: item.Path})
		}
	}

	result.TotalCount = len(result.Items)
	return result, nil
}

// endpoints splits an edge into the frontier-side and discovered-side
// CIs for the traversal direction.
func endpoints(edge domain.Relationship, direction domain.TraversalDirection) (near, far uuid.UUID) {
	if direction == domain.TraverseDependencies {
		return edge.SourceID, edge.TargetID
	}
	return edge.TargetID, edge.SourceID
}
