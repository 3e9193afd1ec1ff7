package github

import (
	"context"
	"time"
)

// InstallationToken is a short-lived token minted for a GitHub App
// installation.
type InstallationToken struct {
	Token     string
	ExpiresAt time.Time
}

// Installation identifies where a GitHub App is installed.
type Installation struct {
	ID      int64
	Account struct {
		Login string
		Type  string
	}
}

// CreateInstallationToken exchanges an app JWT for an installation token.
func (c *Client) CreateInstallationToken(ctx context.Context, appJWT string, installationID int64) (*InstallationToken, error) {
	start := time.Now()
	token, resp, err := c.as(appJWT).Apps.CreateInstallationToken(ctx, installationID, nil)
	c.logCall("create_installation_token", start, resp)
	if err != nil {
		return nil, translate(err)
	}

	return &InstallationToken{
		Token:     token.GetToken(),
		ExpiresAt: token.GetExpiresAt().Time,
	}, nil
}

// Installation looks up an installation using an app JWT.
func (c *Client) Installation(ctx context.Context, appJWT string, installationID int64) (*Installation, error) {
	start := time.Now()
	found, resp, err := c.as(appJWT).Apps.GetInstallation(ctx, installationID)
	c.logCall("get_installation", start, resp)
	if err != nil {
		return nil, translate(err)
	}

	installation := &Installation{ID: found.GetID()}
	installation.Account.Login = found.GetAccount().GetLogin()
	installation.Account.Type = found.GetAccount().GetType()
	return installation, nil
}
