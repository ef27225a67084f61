// Package idp integrates with the external OpenID Connect identity provider.
// Providers return identity facts only; user provisioning and session
// decisions belong to the auth service.
package idp

import "context"

// Identity is the normalized result of a completed provider exchange.
type Identity struct {
	Subject  string
	Username string
	Email    string
	Groups   []string
}

// Provider exchanges an authorization code for a verified identity.
type Provider interface {
	// AuthCodeURL builds the provider authorization URL for the given
	// anti-forgery state.
	AuthCodeURL(state string) string
	// Exchange redeems the authorization code and verifies the resulting
	// ID token. The call is bounded by the configured exchange timeout.
	Exchange(ctx context.Context, code string) (*Identity, error)
}
