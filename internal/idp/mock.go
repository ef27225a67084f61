package idp

import (
	"context"
	"errors"
	"net/url"
)

// MockProvider is a development-only Provider that accepts any non-empty
// code and returns a fixed identity. Enabled via AUTH_MODE=mock; never use
// in production.
type MockProvider struct {
	Identity Identity
}

// NewMockProvider returns a mock provider with a default developer identity.
func NewMockProvider() *MockProvider {
	return &MockProvider{Identity: Identity{
		Subject:  "mock-user",
		Username: "developer",
		Email:    "developer@example.com",
		Groups:   []string{"user", "admin"},
	}}
}

// AuthCodeURL returns a local callback URL carrying the state, so the login
// flow round-trips without an external issuer.
func (p *MockProvider) AuthCodeURL(state string) string {
	return "/api/auth/callback?code=mock&state=" + url.QueryEscape(state)
}

// Exchange returns the fixed identity for any non-empty code.
func (p *MockProvider) Exchange(_ context.Context, code string) (*Identity, error) {
	if code == "" {
		return nil, errors.New("empty authorization code")
	}
	id := p.Identity
	groups := make([]string, len(id.Groups))
	copy(groups, id.Groups)
	id.Groups = groups
	return &id, nil
}
