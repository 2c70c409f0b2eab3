package domain

// Traversal depth bounds. Requests outside [MinTraversalDepth,
// MaxTraversalDepth] fail with ErrInvalidDepth; zero selects the default.
const (
	DefaultTraversalDepth = 3
	MinTraversalDepth     = 1
	MaxTraversalDepth     = 10
)

// TraversalDirection selects which way edges are walked from the
// frontier: Dependencies follows source->target ("what does this CI
// need"), Impact follows target->source ("what needs this CI").
type TraversalDirection int

const (
	TraverseDependencies TraversalDirection = iota
	TraverseImpact
)

// ImpactedCI is one CI reached by a traversal: its hop distance from the
// query root, the CI codes walked to reach it (root first, itself last),
// and the relationship type of the edge that discovered it.
type ImpactedCI struct {
	CI               ConfigurationItem `json:"ci"`
	Distance         int               `json:"distance"`
	Path             []string          `json:"path"`
	RelationshipType RelationshipType  `json:"relationship_type"`
}

// ImpactResult is the derived outcome of a dependency or impact
// traversal. It is never persisted. Items are in breadth-first order;
// ties at equal distance are ordered by CI code.
type ImpactResult struct {
	SourceCI   ConfigurationItem `json:"source_ci"`
	TotalCount int               `json:"total_count"`
	Items      []ImpactedCI      `json:"impacted_cis"`
}
