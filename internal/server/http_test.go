package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	authhandler "github.com/rh-aiservices-bu/litemaas-sub010/internal/auth/handler"
	authservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/auth/service"
	healthhandler "github.com/rh-aiservices-bu/litemaas-sub010/internal/health/handler"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/idp"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/security"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/server/middleware"
	sessiondomain "github.com/rh-aiservices-bu/litemaas-sub010/internal/session/domain"
	sessionhandler "github.com/rh-aiservices-bu/litemaas-sub010/internal/session/handler"
	tokenservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/token/service"
	userdomain "github.com/rh-aiservices-bu/litemaas-sub010/internal/user/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type denyAllValidator struct{}

func (denyAllValidator) ValidateAccess(_ context.Context, _ string) (*security.AccessClaims, error) {
	return nil, security.ErrInvalidToken
}

type stubUserRepo struct{}

func (stubUserRepo) GetByUsername(_ context.Context, _ string) (*userdomain.User, error) {
	return nil, nil
}
func (stubUserRepo) Upsert(_ context.Context, _ *userdomain.User) error { return nil }

type stubSessionRegistry struct{}

func (stubSessionRegistry) Create(_ context.Context, u *userdomain.User, _, _ string) (*sessiondomain.Session, *tokenservice.Pair, error) {
	return &sessiondomain.Session{ID: "s", UserID: u.ID, IsActive: true}, &tokenservice.Pair{}, nil
}
func (stubSessionRegistry) Invalidate(_ context.Context, _ string) error { return nil }

type stubRefreshRegistry struct{}

func (stubRefreshRegistry) Refresh(_ context.Context, _, _ string) (*tokenservice.Pair, error) {
	return &tokenservice.Pair{}, nil
}
func (stubRefreshRegistry) ResolveSessionForSecret(_ context.Context, _ string) (string, error) {
	return "", nil
}

type stubSessionLister struct{}

func (stubSessionLister) Validate(_ context.Context, _ string) (*sessiondomain.Session, error) {
	return nil, nil
}
func (stubSessionLister) Invalidate(_ context.Context, _ string) error { return nil }
func (stubSessionLister) InvalidateAllForUser(_ context.Context, _, _ string) (int, error) {
	return 0, nil
}
func (stubSessionLister) ListForUser(_ context.Context, _, _ string) ([]sessiondomain.Summary, error) {
	return nil, nil
}

func testRouter() *gin.Engine {
	svc := authservice.NewService(idp.NewMockProvider(), stubUserRepo{}, stubSessionRegistry{}, nil, nil, nil)
	return NewRouter(Deps{
		Gate:     middleware.NewGate(denyAllValidator{}, nil, nil, nil, nil),
		Auth:     authhandler.NewHandler(svc, stubRefreshRegistry{}, nil),
		Sessions: sessionhandler.NewHandler(stubSessionLister{}, nil, nil),
		Health:   healthhandler.NewHandler(nil),
	})
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestMetricsExposed(t *testing.T) {
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/auth/logout"},
		{http.MethodGet, "/auth/me"},
		{http.MethodGet, "/auth/sessions"},
		{http.MethodDelete, "/auth/sessions"},
		{http.MethodDelete, "/auth/sessions/some-id"},
	}
	r := testRouter()
	for _, p := range paths {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(p.method, p.path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: status = %d, want 401", p.method, p.path, w.Code)
		}
	}
}

func TestRequestIDHeaderSet(t *testing.T) {
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID response header")
	}
}
