package app

import (
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/data/repos"
	"github.com/statline/statline-backend/internal/platform/logger"
)

type Repos struct {
	Project  repos.ProjectRepo
	APIToken repos.APITokenRepo
	Event    repos.EventRepo
	Rollup   repos.RollupRepo
	JobRun   repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Project:  repos.NewProjectRepo(db, log),
		APIToken: repos.NewAPITokenRepo(db, log),
		Event:    repos.NewEventRepo(db, log),
		Rollup:   repos.NewRollupRepo(db, log),
		JobRun:   repos.NewJobRunRepo(db, log),
	}
}
