package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	authservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/auth/service"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/idp"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/server/middleware"
	sessiondomain "github.com/rh-aiservices-bu/litemaas-sub010/internal/session/domain"
	sessionservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/session/service"
	tokenservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/token/service"
	userdomain "github.com/rh-aiservices-bu/litemaas-sub010/internal/user/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*userdomain.User
}

func (m *memUserRepo) GetByUsername(_ context.Context, username string) (*userdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) Upsert(_ context.Context, u *userdomain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = map[string]*userdomain.User{}
	}
	if _, ok := m.users[u.Username]; !ok {
		cp := *u
		m.users[u.Username] = &cp
	}
	return nil
}

func testPair() *tokenservice.Pair {
	now := time.Now().UTC()
	return &tokenservice.Pair{
		AccessToken:      "access-token",
		RefreshToken:     "refresh-secret",
		RefreshTokenID:   "rt-1",
		AccessExpiresAt:  now.Add(24 * time.Hour),
		RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
	}
}

type fakeSessionRegistry struct {
	invalidated []string
}

func (f *fakeSessionRegistry) Create(_ context.Context, user *userdomain.User, ip, ua string) (*sessiondomain.Session, *tokenservice.Pair, error) {
	return &sessiondomain.Session{ID: "sess-1", UserID: user.ID, IsActive: true}, testPair(), nil
}

func (f *fakeSessionRegistry) Invalidate(_ context.Context, sessionID string) error {
	f.invalidated = append(f.invalidated, sessionID)
	return nil
}

type fakeRefreshRegistry struct {
	pair       *tokenservice.Pair
	refreshErr error
	resolved   string
	resolveErr error
	gotSession string
}

func (f *fakeRefreshRegistry) Refresh(_ context.Context, sessionID, secret string) (*tokenservice.Pair, error) {
	f.gotSession = sessionID
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.pair, nil
}

func (f *fakeRefreshRegistry) ResolveSessionForSecret(_ context.Context, secret string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return f.resolved, nil
}

func newAuthRouter(t *testing.T, registry RefreshRegistry) (*gin.Engine, *fakeSessionRegistry) {
	t.Helper()
	sessions := &fakeSessionRegistry{}
	svc := authservice.NewService(idp.NewMockProvider(), &memUserRepo{}, sessions, nil, nil, nil)
	h := NewHandler(svc, registry, nil)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", identityStub("u1", "sess-1"), h.Logout)
	r.GET("/auth/me", identityStub("u1", "sess-1"), h.Me)
	return r, sessions
}

// identityStub injects an authenticated identity the way the gate would.
func identityStub(userID, sessionID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(middleware.WithIdentity(c.Request.Context(), middleware.Identity{
			UserID:    userID,
			Username:  "alice",
			Email:     "alice@example.com",
			Roles:     []string{"user"},
			SessionID: sessionID,
		}))
		c.Next()
	}
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginSuccess(t *testing.T) {
	r, _ := newAuthRouter(t, &fakeRefreshRegistry{})
	w := postJSON(r, "/auth/login", `{"code":"mock"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body loginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.AccessToken == "" || body.RefreshToken == "" || body.SessionID == "" {
		t.Fatalf("incomplete token response: %+v", body)
	}
	if body.User.Username != "developer" {
		t.Fatalf("user = %+v", body.User)
	}
	if body.ExpiresIn <= 0 {
		t.Fatalf("expiresIn = %d", body.ExpiresIn)
	}
}

func TestLoginMissingCode(t *testing.T) {
	r, _ := newAuthRouter(t, &fakeRefreshRegistry{})
	if w := postJSON(r, "/auth/login", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRefreshWithSessionID(t *testing.T) {
	registry := &fakeRefreshRegistry{pair: testPair()}
	r, _ := newAuthRouter(t, registry)

	w := postJSON(r, "/auth/refresh", `{"refreshToken":"secret","sessionId":"sess-7"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if registry.gotSession != "sess-7" {
		t.Fatalf("refreshed session %q, want sess-7", registry.gotSession)
	}
	var body tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.RefreshToken != "refresh-secret" || body.SessionID != "sess-7" {
		t.Fatalf("unexpected response: %+v", body)
	}
}

func TestRefreshResolvesMissingSessionID(t *testing.T) {
	registry := &fakeRefreshRegistry{pair: testPair(), resolved: "sess-9"}
	r, _ := newAuthRouter(t, registry)

	w := postJSON(r, "/auth/refresh", `{"refreshToken":"secret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if registry.gotSession != "sess-9" {
		t.Fatalf("refreshed session %q, want resolved sess-9", registry.gotSession)
	}
}

func TestRefreshRejectedUniform401(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"invalid token", tokenservice.ErrInvalidRefreshToken},
		{"session gone", sessionservice.ErrSessionNotFound},
		{"mismatch", sessionservice.ErrSessionMismatch},
		{"inactive user", tokenservice.ErrUserInactive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newAuthRouter(t, &fakeRefreshRegistry{refreshErr: tc.err})
			w := postJSON(r, "/auth/refresh", `{"refreshToken":"secret","sessionId":"s"}`)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			var env middleware.ErrorEnvelope
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatal(err)
			}
			if env.Error.Code != middleware.CodeUnauthorized {
				t.Fatalf("code = %q", env.Error.Code)
			}
		})
	}
}

func TestRefreshUnresolvableSecret(t *testing.T) {
	registry := &fakeRefreshRegistry{resolveErr: sessionservice.ErrSessionNotFound}
	r, _ := newAuthRouter(t, registry)
	if w := postJSON(r, "/auth/refresh", `{"refreshToken":"secret"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRefreshMissingToken(t *testing.T) {
	r, _ := newAuthRouter(t, &fakeRefreshRegistry{})
	if w := postJSON(r, "/auth/refresh", `{"sessionId":"s"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestLogoutInvalidatesCurrentSession(t *testing.T) {
	r, sessions := newAuthRouter(t, &fakeRefreshRegistry{})
	w := postJSON(r, "/auth/logout", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(sessions.invalidated) != 1 || sessions.invalidated[0] != "sess-1" {
		t.Fatalf("invalidated = %v", sessions.invalidated)
	}
}

func TestMeReturnsIdentity(t *testing.T) {
	r, _ := newAuthRouter(t, &fakeRefreshRegistry{})
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body userResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.ID != "u1" || body.Username != "alice" {
		t.Fatalf("unexpected identity: %+v", body)
	}
}
