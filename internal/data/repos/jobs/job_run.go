package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/statline/statline-backend/internal/data/dberr"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/logger"
)

type JobRunRepo interface {
	Enqueue(ctx context.Context, tx *gorm.DB, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.JobRun, error)
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB, retryDelay, staleRunning time.Duration) (*types.JobRun, error)
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, tx *gorm.DB, id uuid.UUID, result datatypes.JSON) (bool, error)
	MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, errMsg string) (bool, error)
	ExistsRunnable(ctx context.Context, tx *gorm.DB, projectID *uuid.UUID, jobType string, dayKey string) (bool, error)
	CountByStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error)
	PurgeFinished(ctx context.Context, tx *gorm.DB, olderThan time.Duration) (int64, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *jobRunRepo) Enqueue(ctx context.Context, tx *gorm.DB, jobs []*types.JobRun) ([]*types.JobRun, error) {
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	now := time.Now().UTC()
	for _, job := range jobs {
		if job.ID == uuid.Nil {
			job.ID = uuid.New()
		}
		if job.Status == "" {
			job.Status = types.JobStatusQueued
		}
		if job.MaxAttempts <= 0 {
			job.MaxAttempts = 3
		}
		if job.RunAt.IsZero() {
			job.RunAt = now
		}
	}
	if err := r.conn(tx).WithContext(ctx).Create(&jobs).Error; err != nil {
		return nil, dberr.Map("job_run.Enqueue", err)
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.JobRun, error) {
	var out []*types.JobRun
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.conn(tx).WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, dberr.Map("job_run.GetByIDs", err)
	}
	return out, nil
}

// ClaimNextRunnable picks the oldest job that is due and marks it running.
// Runnable means queued with run_at reached, failed with attempts left past
// the retry delay, or running with a heartbeat older than staleRunning.
// SKIP LOCKED keeps competing workers off each other's rows.
func (r *jobRunRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, retryDelay, staleRunning time.Duration) (*types.JobRun, error) {
	now := time.Now().UTC()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.JobRun
	err := r.conn(tx).WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          (status = ? AND run_at <= ?)
          OR (
            status = ?
            AND attempts < max_attempts
            AND (last_error_at IS NULL OR last_error_at < ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, types.JobStatusQueued, now, types.JobStatusFailed, retryCutoff, types.JobStatusRunning, staleCutoff).
			Order("run_at ASC, created_at ASC")
		qErr := q.First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.JobRun{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       types.JobStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = types.JobStatusRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, dberr.Map("job_run.ClaimNextRunnable", err)
	}
	return claimed, nil
}

func (r *jobRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	if err := r.conn(tx).WithContext(ctx).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error; err != nil {
		return dberr.Map("job_run.Heartbeat", err)
	}
	return nil
}

// MarkSucceeded finalizes a running job. It reports false when the row was
// not in running state, which happens when a stale claim was re-run elsewhere.
func (r *jobRunRepo) MarkSucceeded(ctx context.Context, tx *gorm.DB, id uuid.UUID, result datatypes.JSON) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	now := time.Now().UTC()
	res := r.conn(tx).WithContext(ctx).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":     types.JobStatusSucceeded,
			"result":     result,
			"error":      "",
			"updated_at": now,
		})
	if res.Error != nil {
		return false, dberr.Map("job_run.MarkSucceeded", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, errMsg string) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	now := time.Now().UTC()
	res := r.conn(tx).WithContext(ctx).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":        types.JobStatusFailed,
			"error":         errMsg,
			"last_error_at": now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, dberr.Map("job_run.MarkFailed", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ExistsRunnable reports whether a queued or running job of jobType already
// exists, optionally scoped to a project and to a payload day key. It keeps
// the enqueue path from piling duplicate rollup jobs onto the same day.
func (r *jobRunRepo) ExistsRunnable(ctx context.Context, tx *gorm.DB, projectID *uuid.UUID, jobType string, dayKey string) (bool, error) {
	if jobType == "" {
		return false, nil
	}
	q := r.conn(tx).WithContext(ctx).
		Model(&types.JobRun{}).
		Where("job_type = ? AND status IN ?", jobType, []string{types.JobStatusQueued, types.JobStatusRunning})
	if projectID != nil && *projectID != uuid.Nil {
		q = q.Where("project_id = ?", *projectID)
	}
	if dayKey != "" {
		q = q.Where(datatypes.JSONQuery("payload").Equals(dayKey, "day"))
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, dberr.Map("job_run.ExistsRunnable", err)
	}
	return count > 0, nil
}

func (r *jobRunRepo) CountByStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Status string `gorm:"column:status"`
		Count  int64  `gorm:"column:count"`
	}
	if err := r.conn(tx).WithContext(ctx).
		Model(&types.JobRun{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, dberr.Map("job_run.CountByStatus", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// PurgeFinished hard-deletes finished rows older than the cutoff. Failed rows
// only go once their attempts are spent, so retryable failures survive.
func (r *jobRunRepo) PurgeFinished(ctx context.Context, tx *gorm.DB, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res := r.conn(tx).WithContext(ctx).
		Unscoped().
		Where("updated_at < ? AND (status = ? OR (status = ? AND attempts >= max_attempts))",
			cutoff, types.JobStatusSucceeded, types.JobStatusFailed).
		Delete(&types.JobRun{})
	if res.Error != nil {
		return 0, dberr.Map("job_run.PurgeFinished", res.Error)
	}
	return res.RowsAffected, nil
}
