package project

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/data/dberr"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/logger"
)

type ProjectRepo interface {
	Create(ctx context.Context, tx *gorm.DB, projects []*types.Project) ([]*types.Project, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, projectIDs []uuid.UUID) ([]*types.Project, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Project, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Project, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, fields map[string]interface{}) error
	SlugExists(ctx context.Context, tx *gorm.DB, slug string) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	repoLog := baseLog.With("repo", "ProjectRepo")
	return &projectRepo{db: db, log: repoLog}
}

func (pr *projectRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return pr.db
}

func (pr *projectRepo) Create(ctx context.Context, tx *gorm.DB, projects []*types.Project) ([]*types.Project, error) {
	if len(projects) == 0 {
		return []*types.Project{}, nil
	}
	if err := pr.conn(tx).WithContext(ctx).Create(&projects).Error; err != nil {
		return nil, dberr.Map("project.Create", err)
	}
	return projects, nil
}

func (pr *projectRepo) GetByIDs(ctx context.Context, tx *gorm.DB, projectIDs []uuid.UUID) ([]*types.Project, error) {
	var results []*types.Project
	if len(projectIDs) == 0 {
		return results, nil
	}
	if err := pr.conn(tx).WithContext(ctx).
		Where("id IN ?", projectIDs).
		Find(&results).Error; err != nil {
		return nil, dberr.Map("project.GetByIDs", err)
	}
	return results, nil
}

func (pr *projectRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Project, error) {
	var result types.Project
	if err := pr.conn(tx).WithContext(ctx).
		Where("slug = ?", slug).
		First(&result).Error; err != nil {
		return nil, dberr.Map("project.GetBySlug", err)
	}
	return &result, nil
}

func (pr *projectRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Project, error) {
	var results []*types.Project
	if err := pr.conn(tx).WithContext(ctx).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, dberr.Map("project.List", err)
	}
	return results, nil
}

func (pr *projectRepo) UpdateFields(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if err := pr.conn(tx).WithContext(ctx).
		Model(&types.Project{}).
		Where("id = ?", projectID).
		Updates(fields).Error; err != nil {
		return dberr.Map("project.UpdateFields", err)
	}
	return nil
}

func (pr *projectRepo) SlugExists(ctx context.Context, tx *gorm.DB, slug string) (bool, error) {
	var count int64
	if err := pr.conn(tx).WithContext(ctx).
		Model(&types.Project{}).
		Where("slug = ?", slug).
		Count(&count).Error; err != nil {
		return false, dberr.Map("project.SlugExists", err)
	}
	return count > 0, nil
}

func (pr *projectRepo) Delete(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error {
	if err := pr.conn(tx).WithContext(ctx).
		Where("id = ?", projectID).
		Delete(&types.Project{}).Error; err != nil {
		return dberr.Map("project.Delete", err)
	}
	return nil
}
