package repos

import (
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/data/repos/jobs"
	"github.com/statline/statline-backend/internal/data/repos/project"
	"github.com/statline/statline-backend/internal/data/repos/telemetry"
	"github.com/statline/statline-backend/internal/platform/logger"
)

type ProjectRepo = project.ProjectRepo
type APITokenRepo = project.APITokenRepo

type EventRepo = telemetry.EventRepo
type RollupRepo = telemetry.RollupRepo

type ValueStats = telemetry.ValueStats
type OutcomeStats = telemetry.OutcomeStats

type JobRunRepo = jobs.JobRunRepo

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return project.NewProjectRepo(db, baseLog)
}
func NewAPITokenRepo(db *gorm.DB, baseLog *logger.Logger) APITokenRepo {
	return project.NewAPITokenRepo(db, baseLog)
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return telemetry.NewEventRepo(db, baseLog)
}
func NewRollupRepo(db *gorm.DB, baseLog *logger.Logger) RollupRepo {
	return telemetry.NewRollupRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
