package project

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/statline/statline-backend/internal/data/dberr"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/logger"
)

type APITokenRepo interface {
	Create(ctx context.Context, tx *gorm.DB, tokens []*types.APIToken) ([]*types.APIToken, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, tokenIDs []uuid.UUID) ([]*types.APIToken, error)
	ListByProjectIDs(ctx context.Context, tx *gorm.DB, projectIDs []uuid.UUID) ([]*types.APIToken, error)
	TouchLastUsed(ctx context.Context, tx *gorm.DB, tokenID uuid.UUID, at time.Time) error
	Delete(ctx context.Context, tx *gorm.DB, tokenID uuid.UUID) error
}

type apiTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAPITokenRepo(db *gorm.DB, baseLog *logger.Logger) APITokenRepo {
	repoLog := baseLog.With("repo", "APITokenRepo")
	return &apiTokenRepo{db: db, log: repoLog}
}

func (tr *apiTokenRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return tr.db
}

func (tr *apiTokenRepo) Create(ctx context.Context, tx *gorm.DB, tokens []*types.APIToken) ([]*types.APIToken, error) {
	if len(tokens) == 0 {
		return []*types.APIToken{}, nil
	}
	if err := tr.conn(tx).WithContext(ctx).Create(&tokens).Error; err != nil {
		return nil, dberr.Map("api_token.Create", err)
	}
	return tokens, nil
}

func (tr *apiTokenRepo) GetByIDs(ctx context.Context, tx *gorm.DB, tokenIDs []uuid.UUID) ([]*types.APIToken, error) {
	var results []*types.APIToken
	if len(tokenIDs) == 0 {
		return results, nil
	}
	if err := tr.conn(tx).WithContext(ctx).
		Where("id IN ?", tokenIDs).
		Find(&results).Error; err != nil {
		return nil, dberr.Map("api_token.GetByIDs", err)
	}
	return results, nil
}

func (tr *apiTokenRepo) ListByProjectIDs(ctx context.Context, tx *gorm.DB, projectIDs []uuid.UUID) ([]*types.APIToken, error) {
	var results []*types.APIToken
	if len(projectIDs) == 0 {
		return results, nil
	}
	if err := tr.conn(tx).WithContext(ctx).
		Where("project_id IN ?", projectIDs).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, dberr.Map("api_token.ListByProjectIDs", err)
	}
	return results, nil
}

func (tr *apiTokenRepo) TouchLastUsed(ctx context.Context, tx *gorm.DB, tokenID uuid.UUID, at time.Time) error {
	if err := tr.conn(tx).WithContext(ctx).
		Model(&types.APIToken{}).
		Where("id = ?", tokenID).
		Updates(map[string]interface{}{
			"last_used_at": at,
			"updated_at":   time.Now().UTC(),
		}).Error; err != nil {
		return dberr.Map("api_token.TouchLastUsed", err)
	}
	return nil
}

func (tr *apiTokenRepo) Delete(ctx context.Context, tx *gorm.DB, tokenID uuid.UUID) error {
	if err := tr.conn(tx).WithContext(ctx).
		Where("id = ?", tokenID).
		Delete(&types.APIToken{}).Error; err != nil {
		return dberr.Map("api_token.Delete", err)
	}
	return nil
}
