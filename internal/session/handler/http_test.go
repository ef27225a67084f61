package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/server/middleware"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/session/domain"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/session/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRegistry struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newFakeRegistry(sessions ...*domain.Session) *fakeRegistry {
	f := &fakeRegistry{sessions: map[string]*domain.Session{}}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeRegistry) Validate(_ context.Context, sessionID string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || !s.IsActive {
		return nil, service.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRegistry) Invalidate(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionID]; ok {
		s.IsActive = false
	}
	return nil
}

func (f *fakeRegistry) InvalidateAllForUser(_ context.Context, userID, exceptSessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.UserID == userID && s.IsActive && s.ID != exceptSessionID {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (f *fakeRegistry) ListForUser(_ context.Context, userID, currentSessionID string) ([]domain.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Summary
	for _, s := range f.sessions {
		if s.UserID == userID && s.IsActive {
			out = append(out, s.Summarize(currentSessionID))
		}
	}
	return out, nil
}

func session(id, userID string) *domain.Session {
	now := time.Now().UTC()
	return &domain.Session{
		ID: id, UserID: userID, IsActive: true,
		CreatedAt: now, LastActivityAt: now, ExpiresAt: now.Add(time.Hour),
	}
}

func router(registry Registry, userID, sessionID string) *gin.Engine {
	h := NewHandler(registry, nil, nil)
	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		c.Request = c.Request.WithContext(middleware.WithIdentity(c.Request.Context(), middleware.Identity{
			UserID:    userID,
			SessionID: sessionID,
			Roles:     []string{"user"},
		}))
	})
	r.GET("/auth/sessions", h.List)
	r.DELETE("/auth/sessions", h.RevokeOthers)
	r.DELETE("/auth/sessions/:id", h.Revoke)
	return r
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListSessions(t *testing.T) {
	registry := newFakeRegistry(session("s1", "u1"), session("s2", "u1"), session("s3", "other"))
	w := do(router(registry, "u1", "s1"), http.MethodGet, "/auth/sessions")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Sessions []domain.Summary `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(body.Sessions))
	}
	currentFlagged := false
	for _, s := range body.Sessions {
		if s.ID == "s1" && s.Current {
			currentFlagged = true
		}
	}
	if !currentFlagged {
		t.Fatal("current session not flagged")
	}
}

func TestRevokeOwnSession(t *testing.T) {
	registry := newFakeRegistry(session("s1", "u1"), session("s2", "u1"))
	w := do(router(registry, "u1", "s1"), http.MethodDelete, "/auth/sessions/s2")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if registry.sessions["s2"].IsActive {
		t.Fatal("session s2 should be invalidated")
	}
}

func TestRevokeForeignSessionNotFound(t *testing.T) {
	registry := newFakeRegistry(session("s1", "u1"), session("sx", "other"))
	w := do(router(registry, "u1", "s1"), http.MethodDelete, "/auth/sessions/sx")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !registry.sessions["sx"].IsActive {
		t.Fatal("foreign session must not be touched")
	}
}

func TestRevokeUnknownSessionNotFound(t *testing.T) {
	registry := newFakeRegistry(session("s1", "u1"))
	if w := do(router(registry, "u1", "s1"), http.MethodDelete, "/auth/sessions/ghost"); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRevokeOthersKeepsCurrent(t *testing.T) {
	registry := newFakeRegistry(session("s1", "u1"), session("s2", "u1"), session("s3", "u1"))
	w := do(router(registry, "u1", "s1"), http.MethodDelete, "/auth/sessions")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["revoked"] != 2 {
		t.Fatalf("revoked = %d, want 2", body["revoked"])
	}
	if !registry.sessions["s1"].IsActive {
		t.Fatal("current session must survive")
	}
}
