package project

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/statline/statline-backend/internal/data/repos/testutil"
	types "github.com/statline/statline-backend/internal/domain"
)

func TestProjectRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewProjectRepo(db, testutil.Logger(t))

	alpha := &types.Project{
		ID:            uuid.New(),
		Name:          "Alpha",
		Slug:          "alpha-" + uuid.NewString()[:8],
		IngestKeyHash: "hash-a",
	}
	beta := &types.Project{
		ID:            uuid.New(),
		Name:          "Beta",
		Slug:          "beta-" + uuid.NewString()[:8],
		IngestKeyHash: "hash-b",
		Debug:         true,
	}

	created, err := repo.Create(ctx, tx, []*types.Project{alpha, beta})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("Create: expected 2, got %d", len(created))
	}

	rows, err := repo.GetByIDs(ctx, tx, []uuid.UUID{alpha.ID, beta.ID})
	if err != nil || len(rows) != 2 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	bySlug, err := repo.GetBySlug(ctx, tx, alpha.Slug)
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if bySlug == nil || bySlug.ID != alpha.ID {
		t.Fatalf("GetBySlug: expected %v got %v", alpha.ID, bySlug)
	}

	missing, err := repo.GetBySlug(ctx, tx, "no-such-slug")
	if err != nil {
		t.Fatalf("GetBySlug (missing): %v", err)
	}
	if missing != nil {
		t.Fatalf("GetBySlug (missing): expected nil, got %v", missing)
	}

	all, err := repo.List(ctx, tx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) < 2 {
		t.Fatalf("List: expected at least 2, got %d", len(all))
	}

	if err := repo.UpdateFields(ctx, tx, alpha.ID, map[string]interface{}{"name": "Alpha Prime", "debug": true}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	updated, err := repo.GetByIDs(ctx, tx, []uuid.UUID{alpha.ID})
	if err != nil || len(updated) != 1 {
		t.Fatalf("GetByIDs after update: err=%v len=%d", err, len(updated))
	}
	if updated[0].Name != "Alpha Prime" || !updated[0].Debug {
		t.Fatalf("UpdateFields: got name=%q debug=%v", updated[0].Name, updated[0].Debug)
	}

	exists, err := repo.SlugExists(ctx, tx, beta.Slug)
	if err != nil || !exists {
		t.Fatalf("SlugExists: err=%v exists=%v", err, exists)
	}
	exists, err = repo.SlugExists(ctx, tx, "no-such-slug")
	if err != nil || exists {
		t.Fatalf("SlugExists (missing): err=%v exists=%v", err, exists)
	}

	if err := repo.Delete(ctx, tx, beta.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	gone, err := repo.GetByIDs(ctx, tx, []uuid.UUID{beta.ID})
	if err != nil {
		t.Fatalf("GetByIDs after delete: %v", err)
	}
	if len(gone) != 0 {
		t.Fatalf("Delete: expected soft-deleted row to disappear, got %d", len(gone))
	}
}

func TestAPITokenRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewAPITokenRepo(db, testutil.Logger(t))
	p := testutil.SeedProject(t, ctx, tx, "tokens")

	ci := &types.APIToken{ID: uuid.New(), ProjectID: p.ID, Name: "ci"}
	dash := &types.APIToken{ID: uuid.New(), ProjectID: p.ID, Name: "dashboard"}

	if _, err := repo.Create(ctx, tx, []*types.APIToken{ci, dash}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rows, err := repo.GetByIDs(ctx, tx, []uuid.UUID{ci.ID, dash.ID})
	if err != nil || len(rows) != 2 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	byProject, err := repo.ListByProjectIDs(ctx, tx, []uuid.UUID{p.ID})
	if err != nil || len(byProject) != 2 {
		t.Fatalf("ListByProjectIDs: err=%v len=%d", err, len(byProject))
	}

	at := time.Now().UTC().Truncate(time.Second)
	if err := repo.TouchLastUsed(ctx, tx, ci.ID, at); err != nil {
		t.Fatalf("TouchLastUsed: %v", err)
	}
	touched, err := repo.GetByIDs(ctx, tx, []uuid.UUID{ci.ID})
	if err != nil || len(touched) != 1 {
		t.Fatalf("GetByIDs after touch: err=%v len=%d", err, len(touched))
	}
	if touched[0].LastUsedAt == nil || !touched[0].LastUsedAt.Equal(at) {
		t.Fatalf("TouchLastUsed: got %v want %v", touched[0].LastUsedAt, at)
	}

	if err := repo.Delete(ctx, tx, dash.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	remaining, err := repo.ListByProjectIDs(ctx, tx, []uuid.UUID{p.ID})
	if err != nil || len(remaining) != 1 {
		t.Fatalf("ListByProjectIDs after delete: err=%v len=%d", err, len(remaining))
	}
}
