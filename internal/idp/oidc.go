package idp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// OIDCProvider implements Provider against any OpenID Connect issuer using
// discovery (OpenShift OAuth, Keycloak, Dex).
type OIDCProvider struct {
	oauthConfig     *oauth2.Config
	verifier        *oidc.IDTokenVerifier
	exchangeTimeout time.Duration
	logger          *zap.Logger
}

// NewOIDCProvider initializes a provider from the issuer's discovery document.
// exchangeTimeout bounds each Exchange call so a slow or unreachable issuer
// cannot hold login requests open indefinitely.
func NewOIDCProvider(
	ctx context.Context,
	issuer string,
	clientID string,
	clientSecret string,
	redirectURL string,
	exchangeTimeout time.Duration,
	logger *zap.Logger,
) (*OIDCProvider, error) {
	if issuer == "" || clientID == "" || redirectURL == "" {
		return nil, errors.New("oidc provider config missing required fields")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("init oidc provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile", "groups"},
	}

	return &OIDCProvider{
		oauthConfig:     oauthCfg,
		verifier:        verifier,
		exchangeTimeout: exchangeTimeout,
		logger:          logger,
	}, nil
}

// AuthCodeURL builds the authorization URL with the given anti-forgery state.
func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange redeems the authorization code, verifies the ID token, and maps
// its claims to an Identity. Missing subject or username claims fail the
// exchange; email and groups are optional.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	exCtx, cancel := context.WithTimeout(ctx, p.exchangeTimeout)
	defer cancel()

	token, err := p.oauthConfig.Exchange(exCtx, code)
	if err != nil {
		p.logger.Error("oidc code exchange failed", zap.Error(err))
		return nil, fmt.Errorf("oidc code exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("provider did not return id_token")
	}

	idToken, err := p.verifier.Verify(exCtx, rawIDToken)
	if err != nil {
		p.logger.Error("oidc id_token verification failed", zap.Error(err))
		return nil, fmt.Errorf("verify id_token: %w", err)
	}

	var claims struct {
		Subject           string   `json:"sub"`
		Email             string   `json:"email"`
		PreferredUsername string   `json:"preferred_username"`
		Name              string   `json:"name"`
		Groups            []string `json:"groups"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", err)
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Name
	}
	if claims.Subject == "" || username == "" {
		return nil, errors.New("id_token missing required claims")
	}

	p.logger.Debug("oidc exchange verified",
		zap.String("issuer", idToken.Issuer),
		zap.String("subject", claims.Subject),
		zap.Int("groups", len(claims.Groups)))

	return &Identity{
		Subject:  claims.Subject,
		Username: username,
		Email:    claims.Email,
		Groups:   claims.Groups,
	}, nil
}
