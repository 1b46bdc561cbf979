// Package services holds the application layer: validation, authentication
// and orchestration between repos, the report engine and the job queue.
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/statline/statline-backend/internal/data/repos"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/ctxutil"
	"github.com/statline/statline-backend/internal/platform/logger"
)

// JWTClaims is the payload of a dashboard API token. Subject carries the
// token row ID so revocation works without a blocklist.
type JWTClaims struct {
	ProjectID string `json:"pid"`
	jwt.RegisteredClaims
}

type AuthService interface {
	// MintToken creates a token row and returns the signed JWT. The JWT is
	// shown once; only the row survives.
	MintToken(ctx context.Context, projectID uuid.UUID, name string) (string, *types.APIToken, error)
	ListTokens(ctx context.Context, projectID uuid.UUID) ([]*types.APIToken, error)
	// RevokeToken deletes a token row. The project scope is part of the
	// lookup, so one project cannot revoke another's tokens.
	RevokeToken(ctx context.Context, projectID, tokenID uuid.UUID) error

	// SetContextFromToken authenticates a dashboard request and attaches
	// RequestData to the returned context.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	// SetContextFromIngestKey authenticates an SDK ingest request against
	// the project's ingest key hash.
	SetContextFromIngestKey(ctx context.Context, slug, key string) (context.Context, error)

	// NewIngestKey returns a fresh plaintext key and its bcrypt hash.
	NewIngestKey() (string, string, error)
}

type authService struct {
	log      *logger.Logger
	projects repos.ProjectRepo
	tokens   repos.APITokenRepo
	secret   string
	tokenTTL time.Duration
}

func NewAuthService(
	baseLog *logger.Logger,
	projects repos.ProjectRepo,
	tokens repos.APITokenRepo,
	secret string,
	tokenTTL time.Duration,
) AuthService {
	return &authService{
		log:      baseLog.With("service", "AuthService"),
		projects: projects,
		tokens:   tokens,
		secret:   secret,
		tokenTTL: tokenTTL,
	}
}

func (s *authService) MintToken(ctx context.Context, projectID uuid.UUID, name string) (string, *types.APIToken, error) {
	const op = "AuthService.MintToken"
	if projectID == uuid.Nil {
		return "", nil, types.NewError(types.CodeValidation, op, "missing project id", nil)
	}
	if name == "" {
		return "", nil, types.NewError(types.CodeValidation, op, "missing token name", nil)
	}
	found, err := s.projects.GetByIDs(ctx, nil, []uuid.UUID{projectID})
	if err != nil {
		return "", nil, err
	}
	if len(found) == 0 {
		return "", nil, types.NewError(types.CodeNotFound, op, "project not found", nil)
	}

	row := &types.APIToken{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
	}
	if _, err := s.tokens.Create(ctx, nil, []*types.APIToken{row}); err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	claims := JWTClaims{
		ProjectID: projectID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   row.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
	if err != nil {
		return "", nil, types.Wrap(types.CodeInternal, op, err)
	}
	s.log.Info("minted api token", "project_id", projectID, "token_id", row.ID, "name", name)
	return signed, row, nil
}

func (s *authService) ListTokens(ctx context.Context, projectID uuid.UUID) ([]*types.APIToken, error) {
	if projectID == uuid.Nil {
		return nil, types.NewError(types.CodeValidation, "AuthService.ListTokens", "missing project id", nil)
	}
	return s.tokens.ListByProjectIDs(ctx, nil, []uuid.UUID{projectID})
}

func (s *authService) RevokeToken(ctx context.Context, projectID, tokenID uuid.UUID) error {
	const op = "AuthService.RevokeToken"
	if projectID == uuid.Nil || tokenID == uuid.Nil {
		return types.NewError(types.CodeValidation, op, "missing project or token id", nil)
	}
	found, err := s.tokens.GetByIDs(ctx, nil, []uuid.UUID{tokenID})
	if err != nil {
		return err
	}
	if len(found) == 0 || found[0].ProjectID != projectID {
		return types.NewError(types.CodeNotFound, op, "token not found", nil)
	}
	if err := s.tokens.Delete(ctx, nil, tokenID); err != nil {
		return err
	}
	s.log.Info("revoked api token", "project_id", projectID, "token_id", tokenID)
	return nil
}

func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	const op = "AuthService.SetContextFromToken"
	if tokenString == "" {
		return ctx, types.NewError(types.CodeUnauthorized, op, "missing token", nil)
	}

	claims := &JWTClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil || !parsed.Valid {
		return ctx, types.NewError(types.CodeUnauthorized, op, "invalid or expired token", err)
	}

	tokenID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, types.NewError(types.CodeUnauthorized, op, "malformed token subject", err)
	}
	projectID, err := uuid.Parse(claims.ProjectID)
	if err != nil {
		return ctx, types.NewError(types.CodeUnauthorized, op, "malformed project claim", err)
	}

	// A deleted row is a revoked token even while the signature is valid.
	rows, err := s.tokens.GetByIDs(ctx, nil, []uuid.UUID{tokenID})
	if err != nil {
		return ctx, err
	}
	if len(rows) == 0 || rows[0].ProjectID != projectID {
		return ctx, types.NewError(types.CodeUnauthorized, op, "token revoked", nil)
	}

	if err := s.tokens.TouchLastUsed(ctx, nil, tokenID, time.Now().UTC()); err != nil {
		s.log.Warn("touch last_used failed", "token_id", tokenID, "error", err)
	}

	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		ProjectID: projectID,
		TokenID:   tokenID,
	}), nil
}

func (s *authService) SetContextFromIngestKey(ctx context.Context, slug, key string) (context.Context, error) {
	const op = "AuthService.SetContextFromIngestKey"
	if slug == "" || key == "" {
		return ctx, types.NewError(types.CodeUnauthorized, op, "missing project or key", nil)
	}
	project, err := s.projects.GetBySlug(ctx, nil, slug)
	if err != nil {
		return ctx, err
	}
	if project == nil {
		return ctx, types.NewError(types.CodeUnauthorized, op, "unknown project", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(project.IngestKeyHash), []byte(key)); err != nil {
		return ctx, types.NewError(types.CodeUnauthorized, op, "bad ingest key", nil)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{ProjectID: project.ID}), nil
}

func (s *authService) NewIngestKey() (string, string, error) {
	const op = "AuthService.NewIngestKey"
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", "", types.Wrap(types.CodeInternal, op, err)
	}
	key := "slk_" + hex.EncodeToString(raw)
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", "", types.Wrap(types.CodeInternal, op, err)
	}
	return key, string(hash), nil
}
