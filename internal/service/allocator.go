package service

import (
	"context"
	"fmt"

	"github.com/rpattn/cmdbgraph/internal/domain"
	"github.com/rpattn/cmdbgraph/internal/repository"
)

// maxAllocAttempts bounds the retry loop around code allocation. The
// counter itself never collides, but an allocated code can still lose to
// a caller-supplied custom code occupying the same sequence slot.
const maxAllocAttempts = 5

// Allocator produces unique, human-readable, class-scoped CI codes of
// the form <PREFIX>-<5-digit-sequence>, e.g. HW-00042.
type Allocator struct {
	counters repository.CounterRepository
}

// NewAllocator creates a CI code allocator over the counter store.
func NewAllocator(counters repository.CounterRepository) *Allocator {
	return &Allocator{counters: counters}
}

// Allocate returns a fresh CI code for the class. The per-prefix
// sequence is monotonically increasing and never reused, even under
// concurrent allocation.
func (a *Allocator) Allocate(ctx context.Context, class domain.CIClass) (string, error) {
	prefix, err := class.Prefix()
	if err != nil {
		return "", err
	}

	seq, err := a.counters.Next(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to allocate CI code: %w", err)
	}

	return domain.FormatCICode(prefix, seq), nil
}
