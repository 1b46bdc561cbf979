package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/statline/statline-backend/internal/data/repos/testutil"
	types "github.com/statline/statline-backend/internal/domain"
)

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	projectID := uuid.New()

	queued := &types.JobRun{
		ID:        uuid.New(),
		ProjectID: &projectID,
		JobType:   "rollup.day",
		Status:    types.JobStatusQueued,
		RunAt:     now.Add(-3 * time.Hour),
		Payload:   datatypes.JSON([]byte(`{"day":"2026-03-14"}`)),
	}
	retryable := &types.JobRun{
		ID:          uuid.New(),
		JobType:     "report.warm",
		Status:      types.JobStatusFailed,
		Attempts:    1,
		MaxAttempts: 3,
		RunAt:       now.Add(-2 * time.Hour),
		LastErrorAt: testutil.PtrTime(now.Add(-2 * time.Hour)),
		Payload:     datatypes.JSON([]byte(`{}`)),
	}
	stale := &types.JobRun{
		ID:          uuid.New(),
		JobType:     "report.warm",
		Status:      types.JobStatusRunning,
		Attempts:    1,
		MaxAttempts: 3,
		RunAt:       now.Add(-1 * time.Hour),
		HeartbeatAt: testutil.PtrTime(now.Add(-10 * time.Hour)),
		Payload:     datatypes.JSON([]byte(`{}`)),
	}
	future := &types.JobRun{
		ID:      uuid.New(),
		JobType: "rollup.day",
		Status:  types.JobStatusQueued,
		RunAt:   now.Add(time.Hour),
		Payload: datatypes.JSON([]byte(`{}`)),
	}
	spent := &types.JobRun{
		ID:          uuid.New(),
		JobType:     "report.warm",
		Status:      types.JobStatusFailed,
		Attempts:    3,
		MaxAttempts: 3,
		RunAt:       now.Add(-4 * time.Hour),
		LastErrorAt: testutil.PtrTime(now.Add(-4 * time.Hour)),
		Payload:     datatypes.JSON([]byte(`{}`)),
	}

	created, err := repo.Enqueue(ctx, tx, []*types.JobRun{queued, retryable, stale, future, spent})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(created) != 5 {
		t.Fatalf("Enqueue: expected 5, got %d", len(created))
	}

	// Enqueue backfills identity and scheduling defaults.
	bare, err := repo.Enqueue(ctx, tx, []*types.JobRun{{JobType: "rollup.backfill"}})
	if err != nil {
		t.Fatalf("Enqueue (defaults): %v", err)
	}
	if bare[0].ID == uuid.Nil || bare[0].Status != types.JobStatusQueued || bare[0].MaxAttempts != 3 || bare[0].RunAt.IsZero() {
		t.Fatalf("Enqueue (defaults): got %+v", bare[0])
	}

	if rows, err := repo.GetByIDs(ctx, tx, []uuid.UUID{queued.ID, retryable.ID, stale.ID}); err != nil || len(rows) != 3 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	// Claims walk the runnable set oldest run_at first: the due queued row,
	// then the failed row with attempts left, then the stale running row.
	// The future row is not due and the spent row has no attempts left.
	claim1, err := repo.ClaimNextRunnable(ctx, tx, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #1: %v", err)
	}
	if claim1 == nil || claim1.ID != queued.ID {
		t.Fatalf("ClaimNextRunnable #1: expected %v got %+v", queued.ID, claim1)
	}
	if claim1.Status != types.JobStatusRunning || claim1.Attempts != 1 {
		t.Fatalf("ClaimNextRunnable #1: expected running attempt 1, got %s/%d", claim1.Status, claim1.Attempts)
	}

	claim2, err := repo.ClaimNextRunnable(ctx, tx, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #2: %v", err)
	}
	if claim2 == nil || claim2.ID != retryable.ID {
		t.Fatalf("ClaimNextRunnable #2: expected %v got %+v", retryable.ID, claim2)
	}

	claim3, err := repo.ClaimNextRunnable(ctx, tx, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #3: %v", err)
	}
	if claim3 == nil || claim3.ID != stale.ID {
		t.Fatalf("ClaimNextRunnable #3: expected %v got %+v", stale.ID, claim3)
	}

	// bare is still runnable; drain it before asserting exhaustion.
	claim4, err := repo.ClaimNextRunnable(ctx, tx, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #4: %v", err)
	}
	if claim4 == nil || claim4.ID != bare[0].ID {
		t.Fatalf("ClaimNextRunnable #4: expected %v got %+v", bare[0].ID, claim4)
	}

	claim5, err := repo.ClaimNextRunnable(ctx, tx, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #5: %v", err)
	}
	if claim5 != nil {
		t.Fatalf("ClaimNextRunnable #5: expected nil, got %+v", claim5)
	}

	if err := repo.Heartbeat(ctx, tx, claim3.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	// ExistsRunnable dedupes on project, type and the payload day. The
	// rollup job is mid-claim, so it still counts.
	exists, err := repo.ExistsRunnable(ctx, tx, &projectID, "rollup.day", "2026-03-14")
	if err != nil {
		t.Fatalf("ExistsRunnable: %v", err)
	}
	if !exists {
		t.Fatalf("ExistsRunnable: expected true for the claimed rollup job")
	}
	exists, err = repo.ExistsRunnable(ctx, tx, &projectID, "rollup.day", "2026-03-15")
	if err != nil {
		t.Fatalf("ExistsRunnable (other day): %v", err)
	}
	if exists {
		t.Fatalf("ExistsRunnable (other day): expected false")
	}
	exists, err = repo.ExistsRunnable(ctx, tx, nil, "report.warm", "")
	if err != nil {
		t.Fatalf("ExistsRunnable (unscoped): %v", err)
	}
	if !exists {
		t.Fatalf("ExistsRunnable (unscoped): expected true, the stale claim is running again")
	}

	ok, err := repo.MarkSucceeded(ctx, tx, claim1.ID, datatypes.JSON([]byte(`{"rows":2}`)))
	if err != nil || !ok {
		t.Fatalf("MarkSucceeded: err=%v ok=%v", err, ok)
	}
	ok, err = repo.MarkSucceeded(ctx, tx, claim1.ID, nil)
	if err != nil || ok {
		t.Fatalf("MarkSucceeded (repeat): err=%v ok=%v", err, ok)
	}

	ok, err = repo.MarkFailed(ctx, tx, claim2.ID, "warm failed")
	if err != nil || !ok {
		t.Fatalf("MarkFailed: err=%v ok=%v", err, ok)
	}
	ok, err = repo.MarkFailed(ctx, tx, claim2.ID, "warm failed twice")
	if err != nil || ok {
		t.Fatalf("MarkFailed (repeat): err=%v ok=%v", err, ok)
	}

	failed, err := repo.GetByIDs(ctx, tx, []uuid.UUID{claim2.ID})
	if err != nil || len(failed) != 1 {
		t.Fatalf("GetByIDs after fail: err=%v len=%d", err, len(failed))
	}
	if failed[0].Status != types.JobStatusFailed || failed[0].Error != "warm failed" || failed[0].LastErrorAt == nil {
		t.Fatalf("MarkFailed: got %+v", failed[0])
	}

	counts, err := repo.CountByStatus(ctx, tx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[types.JobStatusSucceeded] != 1 {
		t.Fatalf("CountByStatus: expected 1 succeeded, got %d", counts[types.JobStatusSucceeded])
	}
	if counts[types.JobStatusRunning] == 0 {
		t.Fatalf("CountByStatus: expected running rows, got %v", counts)
	}

	// Purge takes the succeeded row and the spent failure; the retryable
	// failure and everything still running survive.
	purged, err := repo.PurgeFinished(ctx, tx, 0)
	if err != nil {
		t.Fatalf("PurgeFinished: %v", err)
	}
	if purged != 2 {
		t.Fatalf("PurgeFinished: expected 2 purged, got %d", purged)
	}
	remaining, err := repo.GetByIDs(ctx, tx, []uuid.UUID{claim1.ID, spent.ID, claim2.ID})
	if err != nil {
		t.Fatalf("GetByIDs after purge: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != claim2.ID {
		t.Fatalf("PurgeFinished: expected only the retryable failure to remain, got %+v", remaining)
	}
}
