package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/security"
	sessiondomain "github.com/rh-aiservices-bu/litemaas-sub010/internal/session/domain"
	sessionservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/session/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeValidator struct {
	claims *security.AccessClaims
	err    error
}

func (f *fakeValidator) ValidateAccess(_ context.Context, _ string) (*security.AccessClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

type fakeSessions struct {
	mu      sync.Mutex
	valid   map[string]bool
	touched []string
}

func (f *fakeSessions) Validate(_ context.Context, sessionID string) (*sessiondomain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.valid[sessionID] {
		return &sessiondomain.Session{ID: sessionID, IsActive: true}, nil
	}
	return nil, sessionservice.ErrSessionNotFound
}

func (f *fakeSessions) Touch(_ context.Context, sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, sessionID)
}

func validClaims() *security.AccessClaims {
	return &security.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
		Username:         "alice",
		Email:            "alice@example.com",
		Roles:            []string{"user", "admin"},
		SessionID:        "s1",
	}
}

func gateRouter(g *Gate, roles ...string) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	chain := []gin.HandlerFunc{g.RequireAuth()}
	if len(roles) > 0 {
		chain = append(chain, g.RequireRole(roles...))
	}
	chain = append(chain, func(c *gin.Context) {
		id, _ := GetIdentity(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"userId": id.UserID, "sessionId": id.SessionID})
	})
	r.GET("/protected", chain...)
	return r
}

func doReq(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	sessions := &fakeSessions{valid: map[string]bool{"s1": true}}
	g := NewGate(&fakeValidator{claims: validClaims()}, sessions, nil, nil, nil)
	w := doReq(gateRouter(g), "Bearer token")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["userId"] != "u1" || body["sessionId"] != "s1" {
		t.Fatalf("unexpected identity: %v", body)
	}
}

func TestRequireAuthCaseInsensitiveScheme(t *testing.T) {
	g := NewGate(&fakeValidator{claims: validClaims()}, &fakeSessions{valid: map[string]bool{"s1": true}}, nil, nil, nil)
	if w := doReq(gateRouter(g), "bearer token"); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequireAuthMissingHeader(t *testing.T) {
	g := NewGate(&fakeValidator{claims: validClaims()}, nil, nil, nil, nil)
	w := doReq(gateRouter(g), "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Error.Code != CodeUnauthorized {
		t.Fatalf("code = %q", env.Error.Code)
	}
	if env.RequestID == "" {
		t.Fatal("expected request ID in envelope")
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	g := NewGate(&fakeValidator{err: security.ErrTokenExpired}, nil, nil, nil, nil)
	w := doReq(gateRouter(g), "Bearer stale")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Error.Code != CodeTokenExpired {
		t.Fatalf("code = %q, want %q", env.Error.Code, CodeTokenExpired)
	}
}

func TestRequireAuthRejectsDeadSession(t *testing.T) {
	sessions := &fakeSessions{valid: map[string]bool{}}
	g := NewGate(&fakeValidator{claims: validClaims()}, sessions, nil, nil, nil)
	if w := doReq(gateRouter(g), "Bearer token"); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequireRoleAllows(t *testing.T) {
	g := NewGate(&fakeValidator{claims: validClaims()}, nil, nil, nil, nil)
	if w := doReq(gateRouter(g, "admin"), "Bearer token"); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequireRoleDenies(t *testing.T) {
	g := NewGate(&fakeValidator{claims: validClaims()}, nil, nil, nil, nil)
	w := doReq(gateRouter(g, "operator"), "Bearer token")

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Error.Code != CodeForbidden {
		t.Fatalf("code = %q", env.Error.Code)
	}
}

func TestOptionalAuthProceedsUnauthenticated(t *testing.T) {
	g := NewGate(&fakeValidator{err: security.ErrInvalidToken}, nil, nil, nil, nil)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/open", g.OptionalAuth(), func(c *gin.Context) {
		_, authed := GetIdentity(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"authenticated": authed})
	})

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("Authorization", "Bearer junk")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["authenticated"] {
		t.Fatal("request should be unauthenticated")
	}
}

func TestOptionalAuthAttachesIdentity(t *testing.T) {
	g := NewGate(&fakeValidator{claims: validClaims()}, &fakeSessions{valid: map[string]bool{"s1": true}}, nil, nil, nil)
	r := gin.New()
	r.GET("/open", g.OptionalAuth(), func(c *gin.Context) {
		id, authed := GetIdentity(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"authenticated": authed, "userId": id.UserID})
	})

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["authenticated"] != true || body["userId"] != "u1" {
		t.Fatalf("unexpected body: %v", body)
	}
}
