package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/platform/ctxutil"
	"github.com/statline/statline-backend/internal/platform/logger"
	"github.com/statline/statline-backend/internal/services"
)

// stubAuth accepts exactly one token and one slug/key pair.
type stubAuth struct {
	services.AuthService

	projectID uuid.UUID
	tokenID   uuid.UUID
	token     string
	slug      string
	key       string
}

func (s *stubAuth) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString != s.token {
		return ctx, types.NewError(types.CodeUnauthorized, "AuthService.SetContextFromToken", "invalid or expired token", nil)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{ProjectID: s.projectID, TokenID: s.tokenID}), nil
}

func (s *stubAuth) SetContextFromIngestKey(ctx context.Context, slug, key string) (context.Context, error) {
	if slug != s.slug || key != s.key {
		return ctx, types.NewError(types.CodeUnauthorized, "AuthService.SetContextFromIngestKey", "bad ingest key", nil)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{ProjectID: s.projectID}), nil
}

func testLog(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func authRouter(t *testing.T, stub *stubAuth) (*gin.Engine, *ctxutil.RequestData) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var seen ctxutil.RequestData
	am := NewAuthMiddleware(testLog(t), stub)

	r := gin.New()
	r.GET("/guarded", am.RequireToken(), func(c *gin.Context) {
		if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
			seen = *rd
		}
		c.Status(http.StatusOK)
	})
	r.POST("/ingest/:slug/events", am.RequireIngestKey(), func(c *gin.Context) {
		if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
			seen = *rd
		}
		c.Status(http.StatusOK)
	})
	return r, &seen
}

func TestRequireTokenAcceptsBearer(t *testing.T) {
	stub := &stubAuth{projectID: uuid.New(), tokenID: uuid.New(), token: "good-token"}
	r, seen := authRouter(t, stub)

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if seen.ProjectID != stub.projectID || seen.TokenID != stub.tokenID {
		t.Fatalf("request data %+v", seen)
	}
}

func TestRequireTokenRejects(t *testing.T) {
	stub := &stubAuth{projectID: uuid.New(), token: "good-token"}
	r, _ := authRouter(t, stub)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic Zm9vOmJhcg=="},
		{"wrong token", "Bearer stolen"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status want=401 got=%d", tc.name, rec.Code)
		}
	}
}

func TestRequireIngestKeyMatchesSlugAndKey(t *testing.T) {
	stub := &stubAuth{projectID: uuid.New(), slug: "demo", key: "slk_abc"}
	r, seen := authRouter(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/ingest/demo/events", nil)
	req.Header.Set(headerIngestKey, "slk_abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if seen.ProjectID != stub.projectID {
		t.Fatalf("project want=%s got=%s", stub.projectID, seen.ProjectID)
	}
	if seen.TokenID != uuid.Nil {
		t.Fatalf("ingest auth should not carry a token id, got %s", seen.TokenID)
	}
}

func TestRequireIngestKeyRejects(t *testing.T) {
	stub := &stubAuth{projectID: uuid.New(), slug: "demo", key: "slk_abc"}
	r, _ := authRouter(t, stub)

	// Missing key header.
	req := httptest.NewRequest(http.MethodPost, "/ingest/demo/events", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: status want=401 got=%d", rec.Code)
	}

	// Right key, wrong project.
	req = httptest.NewRequest(http.MethodPost, "/ingest/other/events", nil)
	req.Header.Set(headerIngestKey, "slk_abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong slug: status want=401 got=%d", rec.Code)
	}
}
