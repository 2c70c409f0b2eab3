package domain

import "errors"

// Error kinds surfaced by the CMDB core. Callers match them with
// errors.Is; repositories wrap them with operation context. Only
// ErrStoreUnavailable is considered transient.
var (
	// ErrNotFound reports a missing CI or relationship endpoint.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateIdentifier reports a CI code collision (case-sensitive
	// exact match across all classes).
	ErrDuplicateIdentifier = errors.New("ci code already exists")

	// ErrDuplicateRelationship reports that an active relationship with
	// the same (source, target, type) already exists.
	ErrDuplicateRelationship = errors.New("relationship already exists")

	// ErrAllocationExhausted reports that the identifier allocator could
	// not obtain a fresh CI code within its bounded retries.
	ErrAllocationExhausted = errors.New("ci code allocation exhausted")

	// ErrInvalidDepth reports a traversal depth outside [1, 10].
	ErrInvalidDepth = errors.New("traversal depth out of range")

	// ErrStoreUnavailable reports an underlying persistence failure.
	ErrStoreUnavailable = errors.New("store unavailable")
)
