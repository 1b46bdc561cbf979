package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/statline/statline-backend/internal/domain"
)

func SeedProject(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Project {
	tb.Helper()
	p := &types.Project{
		ID:            uuid.New(),
		Name:          name,
		Slug:          fmt.Sprintf("%s-%s", name, uuid.NewString()[:8]),
		IngestKeyHash: "test-hash",
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	return p
}

func SeedAPIToken(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID uuid.UUID, name string) *types.APIToken {
	tb.Helper()
	at := &types.APIToken{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
	}
	if err := tx.WithContext(ctx).Create(at).Error; err != nil {
		tb.Fatalf("seed api token: %v", err)
	}
	return at
}

// NewEvent builds an unsaved event with enough defaults to satisfy the
// schema. Tests tweak the measurement fields before handing it to SeedEvents.
func NewEvent(projectID uuid.UUID, kind string, occurredAt time.Time) *types.Event {
	return &types.Event{
		ID:            uuid.New(),
		ProjectID:     projectID,
		ClientEventID: uuid.NewString(),
		Kind:          kind,
		Source:        "web",
		SessionID:     uuid.New(),
		OccurredAt:    occurredAt,
		Props:         datatypes.JSON([]byte(`{}`)),
	}
}

func SeedEvents(tb testing.TB, ctx context.Context, tx *gorm.DB, events ...*types.Event) {
	tb.Helper()
	if len(events) == 0 {
		return
	}
	if err := tx.WithContext(ctx).Create(&events).Error; err != nil {
		tb.Fatalf("seed events: %v", err)
	}
}

func SeedJobRun(tb testing.TB, ctx context.Context, tx *gorm.DB, jobType, status string) *types.JobRun {
	tb.Helper()
	j := &types.JobRun{
		ID:          uuid.New(),
		JobType:     jobType,
		Status:      status,
		MaxAttempts: 3,
		RunAt:       time.Now().UTC().Add(-time.Minute),
		Payload:     datatypes.JSON([]byte(`{}`)),
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed job run: %v", err)
	}
	return j
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }

func PtrFloat(v float64) *float64 { return &v }

func PtrBool(v bool) *bool { return &v }
