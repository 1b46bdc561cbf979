package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/statline/statline-backend/internal/data/repos"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/logger"
)

var slugRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)

type ProjectService interface {
	// CreateProject returns the project and its plaintext ingest key. The
	// key is never stored and never shown again.
	CreateProject(ctx context.Context, name, slug string) (*types.Project, string, error)
	GetProject(ctx context.Context, projectID uuid.UUID) (*types.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*types.Project, error)
	ListProjects(ctx context.Context) ([]*types.Project, error)
	UpdateProject(ctx context.Context, projectID uuid.UUID, name *string, debug *bool) error
	DeleteProject(ctx context.Context, projectID uuid.UUID) error
	// RotateIngestKey invalidates the previous key immediately.
	RotateIngestKey(ctx context.Context, projectID uuid.UUID) (string, error)
}

type projectService struct {
	log      *logger.Logger
	projects repos.ProjectRepo
	auth     AuthService
}

func NewProjectService(baseLog *logger.Logger, projects repos.ProjectRepo, auth AuthService) ProjectService {
	return &projectService{
		log:      baseLog.With("service", "ProjectService"),
		projects: projects,
		auth:     auth,
	}
}

func (s *projectService) CreateProject(ctx context.Context, name, slug string) (*types.Project, string, error) {
	const op = "ProjectService.CreateProject"
	name = strings.TrimSpace(name)
	slug = strings.ToLower(strings.TrimSpace(slug))
	if name == "" {
		return nil, "", types.NewError(types.CodeValidation, op, "missing project name", nil)
	}
	if !slugRe.MatchString(slug) {
		return nil, "", types.NewError(types.CodeValidation, op, "slug must be 3-64 chars of a-z, 0-9 and dashes", nil)
	}
	exists, err := s.projects.SlugExists(ctx, nil, slug)
	if err != nil {
		return nil, "", err
	}
	if exists {
		return nil, "", types.NewError(types.CodeConflict, op, "slug already in use", nil)
	}

	key, hash, err := s.auth.NewIngestKey()
	if err != nil {
		return nil, "", err
	}
	project := &types.Project{
		ID:            uuid.New(),
		Name:          name,
		Slug:          slug,
		IngestKeyHash: hash,
	}
	if _, err := s.projects.Create(ctx, nil, []*types.Project{project}); err != nil {
		return nil, "", err
	}
	s.log.Info("created project", "project_id", project.ID, "slug", slug)
	return project, key, nil
}

func (s *projectService) GetProject(ctx context.Context, projectID uuid.UUID) (*types.Project, error) {
	const op = "ProjectService.GetProject"
	found, err := s.projects.GetByIDs(ctx, nil, []uuid.UUID{projectID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, types.NewError(types.CodeNotFound, op, "project not found", nil)
	}
	return found[0], nil
}

func (s *projectService) GetProjectBySlug(ctx context.Context, slug string) (*types.Project, error) {
	const op = "ProjectService.GetProjectBySlug"
	project, err := s.projects.GetBySlug(ctx, nil, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, types.NewError(types.CodeNotFound, op, "project not found", nil)
	}
	return project, nil
}

func (s *projectService) ListProjects(ctx context.Context) ([]*types.Project, error) {
	return s.projects.List(ctx, nil)
}

func (s *projectService) UpdateProject(ctx context.Context, projectID uuid.UUID, name *string, debug *bool) error {
	const op = "ProjectService.UpdateProject"
	fields := map[string]interface{}{}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return types.NewError(types.CodeValidation, op, "project name cannot be empty", nil)
		}
		fields["name"] = trimmed
	}
	if debug != nil {
		fields["debug"] = *debug
	}
	if len(fields) == 0 {
		return types.NewError(types.CodeValidation, op, "nothing to update", nil)
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}
	return s.projects.UpdateFields(ctx, nil, projectID, fields)
}

func (s *projectService) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, nil, projectID); err != nil {
		return err
	}
	s.log.Info("deleted project", "project_id", projectID)
	return nil
}

func (s *projectService) RotateIngestKey(ctx context.Context, projectID uuid.UUID) (string, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return "", err
	}
	key, hash, err := s.auth.NewIngestKey()
	if err != nil {
		return "", err
	}
	if err := s.projects.UpdateFields(ctx, nil, projectID, map[string]interface{}{"ingest_key_hash": hash}); err != nil {
		return "", err
	}
	s.log.Info("rotated ingest key", "project_id", projectID)
	return key, nil
}
