package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/codetribute/codetribute/internal/github"
)

const (
	// GitHub rejects app JWTs living longer than ten minutes.
	appJWTLifetime = 9 * time.Minute
	// Backdated to absorb clock drift against GitHub.
	appJWTBackdate = 60 * time.Second
	// Installation tokens are renewed this long before they expire.
	tokenRefreshMargin = 5 * time.Minute
)

// InstallationClient exchanges app JWTs for installation tokens.
type InstallationClient interface {
	CreateInstallationToken(ctx context.Context, appJWT string, installationID int64) (*github.InstallationToken, error)
	Installation(ctx context.Context, appJWT string, installationID int64) (*github.Installation, error)
}

// AppProvider builds sessions from a GitHub App installation. Tokens are
// cached and renewed shortly before expiry.
type AppProvider struct {
	client         InstallationClient
	appID          string
	installationID int64
	key            *rsa.PrivateKey
	account        string
	logger         *slog.Logger
	now            func() time.Time

	mu      sync.Mutex
	label   string
	session *Session
}

// NewAppProvider creates a provider. account, when set, overrides the
// installation's account login.
func NewAppProvider(client InstallationClient, appID string, installationID int64, key *rsa.PrivateKey, account string, logger *slog.Logger) *AppProvider {
	return &AppProvider{
		client:         client,
		appID:          appID,
		installationID: installationID,
		key:            key,
		account:        account,
		logger:         logger,
		now:            time.Now,
	}
}

// LoadPrivateKey reads a PEM encoded RSA key as downloaded from the app
// settings page.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read app private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parse app private key: %w", err)
	}
	return key, nil
}

// Session returns a valid installation session. Installation tokens carry
// the app's permissions rather than OAuth scopes, so scopes is not checked.
func (p *AppProvider) Session(ctx context.Context, _ []string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.session != nil && now.Add(tokenRefreshMargin).Before(p.session.ExpiresAt) {
		return p.session, nil
	}

	appJWT, err := p.signJWT(now)
	if err != nil {
		return nil, err
	}

	if p.label == "" {
		p.label = p.account
	}
	if p.label == "" {
		installation, err := p.client.Installation(ctx, appJWT, p.installationID)
		if err != nil {
			return nil, fmt.Errorf("look up app installation: %w", err)
		}
		p.label = installation.Account.Login
	}

	token, err := p.client.CreateInstallationToken(ctx, appJWT, p.installationID)
	if err != nil {
		return nil, fmt.Errorf("create installation token: %w", err)
	}

	p.session = &Session{
		AccessToken:  token.Token,
		AccountLabel: p.label,
		ExpiresAt:    token.ExpiresAt,
	}
	p.logger.Info("github session established",
		"account", p.label,
		"method", "app",
		"expires_at", token.ExpiresAt)
	return p.session, nil
}

// Invalidate drops the cached installation token.
func (p *AppProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = nil
}

func (p *AppProvider) signJWT(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-appJWTBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
		Issuer:    p.appID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("sign app JWT: %w", err)
	}
	return signed, nil
}
