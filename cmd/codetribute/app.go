package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/codetribute/codetribute/internal/auth"
	"github.com/codetribute/codetribute/internal/config"
	"github.com/codetribute/codetribute/internal/github"
	"github.com/codetribute/codetribute/internal/logging"
	"github.com/codetribute/codetribute/internal/metrics"
	"github.com/codetribute/codetribute/internal/notify"
	"github.com/codetribute/codetribute/internal/publish"
	"github.com/codetribute/codetribute/internal/secrets"
)

const (
	messageNoWorkspace = "No workspace folder detected! Please set WORKSPACE_ROOT or pass --root to use Codetribute."
	messageKeySaved    = "Groq API Key saved successfully!"
	messageKeyRequired = "Groq API Key is required to use Summarization features!"
	messageTokenSaved  = "GitHub token saved successfully!"
	messageRepoCreated = "Repository created successfully!"
	messageRepoFailed  = "Failed to create repository!"
	messageRepoExists  = "Repository already exists!"
)

// app holds the collaborators shared by every command. Clients are built
// once here and injected.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	notifier  notify.Notifier
	collector *metrics.Collector
	resolver  *secrets.Resolver
	github    *github.Client
	sessions  auth.Provider
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	collector, err := metrics.NewCollector()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	notifier := notify.NewLogNotifier(logging.Component(logger, "notify"), os.Stderr)

	var prompter secrets.Prompter
	if cfg.Secrets.Prompt {
		prompter = secrets.NewStdinPrompter()
	}
	store := secrets.NewFileStore(cfg.Secrets.Path, cfg.Secrets.Passphrase)
	resolver := secrets.NewResolver(store, prompter, notifier, logging.Component(logger, "secrets"))

	client, err := github.NewClient(cfg.GitHub.APIURL, cfg.GitHub.Timeout, logging.Component(logger, "github"))
	if err != nil {
		return nil, err
	}

	sessions, err := newSessionProvider(cfg.GitHub, client, resolver, logging.Component(logger, "auth"))
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		notifier:  notifier,
		collector: collector,
		resolver:  resolver,
		github:    client,
		sessions:  sessions,
	}, nil
}

// newSessionProvider prefers GitHub App credentials when configured and
// otherwise uses a personal access token.
func newSessionProvider(cfg config.GitHubConfig, client *github.Client, resolver *secrets.Resolver, logger *slog.Logger) (auth.Provider, error) {
	if cfg.AppID != "" {
		key, err := auth.LoadPrivateKey(cfg.AppPrivateKeyPath)
		if err != nil {
			return nil, err
		}
		return auth.NewAppProvider(client, cfg.AppID, cfg.AppInstallationID, key, cfg.Account, logger), nil
	}
	return newTokenProvider(cfg, client, resolver, logger), nil
}

func newTokenProvider(cfg config.GitHubConfig, client *github.Client, resolver *secrets.Resolver, logger *slog.Logger) *auth.TokenProvider {
	source := func() (string, error) {
		return resolver.Resolve(secrets.Lookup{
			Name:        secrets.GitHubToken,
			Value:       cfg.Token,
			Label:       "GitHub token (repo scope)",
			SavedNotice: messageTokenSaved,
		})
	}
	return auth.NewTokenProvider(client, source, cfg.Account, logger)
}

// createRepo creates the private log repository for the signed-in account.
// App installations cannot create user repositories, so this always signs in
// with a token.
func (a *app) createRepo(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*a.cfg.GitHub.Timeout)
	defer cancel()

	sessions := newTokenProvider(a.cfg.GitHub, a.github, a.resolver, logging.Component(a.logger, "auth"))
	session, err := sessions.Session(ctx, []string{auth.RepoScope})
	if err != nil {
		a.notifier.Error(publish.MessageAuthFailed)
		return err
	}

	repo, err := a.github.CreateRepository(ctx, session.AccessToken, a.cfg.GitHub.Repository, true)
	if err != nil {
		// The API answered with something other than 201.
		var apiErr *github.APIError
		switch {
		case errors.Is(err, github.ErrRepositoryExists):
			a.notifier.Error(messageRepoExists)
		case errors.As(err, &apiErr):
			a.notifier.Error(messageRepoFailed)
		default:
			a.notifier.Error("Error: " + err.Error())
		}
		return fmt.Errorf("create repository %s: %w", a.cfg.GitHub.Repository, err)
	}

	a.logger.Info("repository created", "repository", repo.FullName, "private", repo.Private)
	a.notifier.Info(messageRepoCreated)
	return nil
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
