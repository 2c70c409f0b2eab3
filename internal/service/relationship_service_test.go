package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/cmdbgraph/internal/domain"
)

func TestCreateRelationship(t *testing.T) {
	store := newStubStore()
	cis, rels, _ := newServices(store)
	ctx := context.Background()

	app, _ := cis.Create(ctx, CreateCIRequest{Name: "app", Class: domain.CIClassService}, "alice")
	db, _ := cis.Create(ctx, CreateCIRequest{Name: "db", Class: domain.CIClassDatabase}, "alice")

	rel, err := rels.Create(ctx, app.ID, db.ID, domain.RelationshipDependsOn, "reads orders", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !rel.IsActive {
		t.Error("new relationship must be active")
	}

	history, err := cis.History(ctx, app.ID, "", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	found := false
	for _, entry := range history {
		if entry.ChangeType == domain.ChangeTypeRelationshipAdd {
			found = true
			if entry.NewValue == nil || *entry.NewValue != app.CICode+" -> "+db.CICode {
				t.Errorf("RELATIONSHIP_ADD payload wrong: %v", entry.NewValue)
			}
		}
	}
	if !found {
		t.Error("expected a RELATIONSHIP_ADD history entry on the source CI")
	}
}

func TestCreateRelationshipValidation(t *testing.T) {
	store := newStubStore()
	cis, rels, _ := newServices(store)
	ctx := context.Background()

	app, _ := cis.Create(ctx, CreateCIRequest{Name: "app", Class: domain.CIClassService}, "alice")
	db, _ := cis.Create(ctx, CreateCIRequest{Name: "db", Class: domain.CIClassDatabase}, "alice")

	if _, err := rels.Create(ctx, app.ID, db.ID, "FRIENDS_WITH", "", "alice"); err == nil {
		t.Error("expected error for unknown relationship type")
	}

	_, err := rels.Create(ctx, uuid.New(), db.ID, domain.RelationshipDependsOn, "", "alice")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for absent source, got %v", err)
	}
	_, err = rels.Create(ctx, app.ID, uuid.New(), domain.RelationshipDependsOn, "", "alice")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for absent target, got %v", err)
	}
}

func TestDuplicateActiveRelationshipRejected(t *testing.T) {
	store := newStubStore()
	cis, rels, _ := newServices(store)
	ctx := context.Background()

	app, _ := cis.Create(ctx, CreateCIRequest{Name: "app", Class: domain.CIClassService}, "alice")
	db, _ := cis.Create(ctx, CreateCIRequest{Name: "db", Class: domain.CIClassDatabase}, "alice")

	first, err := rels.Create(ctx, app.ID, db.ID, domain.RelationshipDependsOn, "", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = rels.Create(ctx, app.ID, db.ID, domain.RelationshipDependsOn, "", "bob")
	if !errors.Is(err, domain.ErrDuplicateRelationship) {
		t.Fatalf("expected ErrDuplicateRelationship, got %v", err)
	}

	// Same endpoints with a different type is a distinct edge.
	if _, err := rels.Create(ctx, app.ID, db.ID, domain.RelationshipUses, "", "alice"); err != nil {
		t.Errorf("different type should be allowed: %v", err)
	}
	// The reverse direction is a distinct edge too.
	if _, err := rels.Create(ctx, db.ID, app.ID, domain.RelationshipDependsOn, "", "alice"); err != nil {
		t.Errorf("reverse direction should be allowed: %v", err)
	}

	// After deactivation the triple can be recreated.
	if err := rels.Delete(ctx, first.ID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := rels.Create(ctx, app.ID, db.ID, domain.RelationshipDependsOn, "", "alice"); err != nil {
		t.Errorf("recreating a deactivated triple should be allowed: %v", err)
	}
}

func TestConcurrentDuplicateCreatesExactlyOneWins(t *testing.T) {
	store := newStubStore()
	cis, rels, _ := newServices(store)
	ctx := context.Background()

	app, _ := cis.Create(ctx, CreateCIRequest{Name: "app", Class: domain.CIClassService}, "alice")
	db, _ := cis.Create(ctx, CreateCIRequest{Name: "db", Class: domain.CIClassDatabase}, "alice")

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rels.Create(context.Background(), app.ID, db.ID, domain.RelationshipDependsOn, "", "alice")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, duplicates int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrDuplicateRelationship):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins)
	}
	if duplicates != workers-1 {
		t.Errorf("expected %d duplicate rejections, got %d", workers-1, duplicates)
	}
}

func TestDeleteRelationshipIdempotent(t *testing.T) {
	store := newStubStore()
	cis, rels, _ := newServices(store)
	ctx := context.Background()

	app, _ := cis.Create(ctx, CreateCIRequest{Name: "app", Class: domain.CIClassService}, "alice")
	db, _ := cis.Create(ctx, CreateCIRequest{Name: "db", Class: domain.CIClassDatabase}, "alice")
	rel, err := rels.Create(ctx, app.ID, db.ID, domain.RelationshipDependsOn, "", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := rels.Delete(ctx, rel.ID, "bob"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := rels.Delete(ctx, rel.ID, "bob"); err != nil {
		t.Fatalf("repeat delete should be a no-op: %v", err)
	}

	listed, err := rels.ListFor(ctx, app.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("deactivated relationship still listed: %d", len(listed))
	}

	removes := 0
	history, _ := cis.History(ctx, app.ID, "", 0)
	for _, entry := range history {
		if entry.ChangeType == domain.ChangeTypeRelationshipRemove {
			removes++
		}
	}
	if removes != 1 {
		t.Errorf("expected exactly 1 RELATIONSHIP_REMOVE entry, got %d", removes)
	}
}
