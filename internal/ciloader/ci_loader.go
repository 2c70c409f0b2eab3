package ciloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/cmdbgraph/internal/domain"
	"github.com/rpattn/cmdbgraph/internal/repository"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// CILoader batches and caches per-request CI lookups, so expanding the
// endpoints of a relationship listing costs one query instead of two per
// edge.
type CILoader struct {
	Loader *dataloader.Loader
}

func NewCILoader(repo repository.CIRepository) *CILoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				return []*dataloader.Result{{Error: fmt.Errorf("invalid UUID: %w", err)}}
			}
			ids[i] = id
		}

		cis, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		ciMap := make(map[uuid.UUID]domain.ConfigurationItem)
		for _, ci := range cis {
			ciMap[ci.ID] = ci
		}

		// Results must line up with the key order.
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if ci, ok := ciMap[id]; ok {
				results[i] = &dataloader.Result{Data: ci}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}

		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &CILoader{Loader: loader}
}

// Load fetches one CI through the batcher. A missing CI returns nil
// without an error, matching the point-lookup semantics.
func (l *CILoader) Load(ctx context.Context, id uuid.UUID) (*domain.ConfigurationItem, error) {
	thunk := l.Loader.Load(ctx, dataloader.StringKey(id.String()))
	data, err := thunk()
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	ci, ok := data.(domain.ConfigurationItem)
	if !ok {
		return nil, fmt.Errorf("unexpected loader result type %T", data)
	}
	return &ci, nil
}
