// Package auth produces GitHub sessions for the publisher, either from a
// personal access token or from a GitHub App installation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/codetribute/codetribute/internal/github"
)

// RepoScope is the classic OAuth scope needed to write repository contents.
const RepoScope = "repo"

var (
	// ErrNoSession means no credential could be obtained.
	ErrNoSession = errors.New("no GitHub session available")
	// ErrMissingScope means the token lacks a requested scope.
	ErrMissingScope = errors.New("GitHub token is missing a required scope")
)

// Session is an authenticated identity for the remote store.
type Session struct {
	AccessToken  string
	AccountLabel string
	// ExpiresAt is zero for tokens without a known expiry.
	ExpiresAt time.Time
	// Scopes holds the classic OAuth scopes granted, nil when unknown.
	Scopes []string
}

func (s *Session) hasScopes(scopes []string) error {
	if s.Scopes == nil {
		return nil
	}
	for _, scope := range scopes {
		if !slices.Contains(s.Scopes, scope) {
			return fmt.Errorf("%w: %s", ErrMissingScope, scope)
		}
	}
	return nil
}

// Provider returns a session carrying the requested scopes, prompting or
// exchanging credentials as needed.
type Provider interface {
	Session(ctx context.Context, scopes []string) (*Session, error)
}

// Invalidator is implemented by providers that cache sessions. Callers
// invalidate after the remote rejects a token.
type Invalidator interface {
	Invalidate()
}

// TokenSource yields a raw access token.
type TokenSource func() (string, error)

// IdentityClient resolves the owner of a token.
type IdentityClient interface {
	AuthenticatedUser(ctx context.Context, token string) (*github.User, error)
}

// TokenProvider builds sessions from a personal access token.
type TokenProvider struct {
	client  IdentityClient
	source  TokenSource
	account string
	logger  *slog.Logger

	mu      sync.Mutex
	session *Session
}

// NewTokenProvider creates a provider. account, when set, overrides the
// login reported by the API as the repository owner.
func NewTokenProvider(client IdentityClient, source TokenSource, account string, logger *slog.Logger) *TokenProvider {
	return &TokenProvider{
		client:  client,
		source:  source,
		account: account,
		logger:  logger,
	}
}

// Session returns the cached session or resolves a new one.
func (p *TokenProvider) Session(ctx context.Context, scopes []string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil {
		if err := p.session.hasScopes(scopes); err != nil {
			return nil, err
		}
		return p.session, nil
	}

	token, err := p.source()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if token == "" {
		return nil, ErrNoSession
	}

	user, err := p.client.AuthenticatedUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("verify GitHub token: %w", err)
	}

	label := p.account
	if label == "" {
		label = user.Login
	}

	// Fine-grained tokens report no scopes header; their permissions are
	// checked by the API on write.
	session := &Session{AccessToken: token, AccountLabel: label, Scopes: user.Scopes}
	if err := session.hasScopes(scopes); err != nil {
		return nil, err
	}

	p.session = session
	p.logger.Info("github session established", "account", label, "method", "token")
	return p.session, nil
}

// Invalidate drops the cached session.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = nil
}
