// Package publish uploads the local work log to the remote repository with a
// read-modify-write against the file's version token.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/codetribute/codetribute/internal/auth"
	"github.com/codetribute/codetribute/internal/github"
	"github.com/codetribute/codetribute/internal/metrics"
	"github.com/codetribute/codetribute/internal/models"
	"github.com/codetribute/codetribute/internal/notify"
	"github.com/codetribute/codetribute/internal/retry"
)

// Operator-facing messages.
const (
	MessageSuccess    = "Logs pushed to GitHub successfully!"
	MessageAuthFailed = "GitHub authentication failed!"
	messageFailure    = "Error pushing logs to GitHub: "
)

// ContentStore reads and writes repository files.
type ContentStore interface {
	GetContent(ctx context.Context, token, owner, repo, path string) (*github.Content, error)
	PutContent(ctx context.Context, token, owner, repo, path string, req github.PutContentRequest) (*github.PutContentResponse, error)
}

// Options locates the local log and its remote copy. Retry governs rate
// limits and server errors on each remote call; the zero value means
// retry.DefaultPolicy.
type Options struct {
	LocalPath     string
	Repository    string
	RemotePath    string
	CommitMessage string
	Retry         retry.Policy
}

// Result describes a publish attempt.
type Result struct {
	Status    models.PublishStatus
	CommitSHA string
}

// Publisher replaces the remote log with the local file's full contents.
type Publisher struct {
	store     ContentStore
	sessions  auth.Provider
	opts      Options
	notifier  notify.Notifier
	collector *metrics.Collector
	logger    *slog.Logger
}

// New creates a publisher.
func New(store ContentStore, sessions auth.Provider, opts Options, notifier notify.Notifier, collector *metrics.Collector, logger *slog.Logger) *Publisher {
	if opts.Retry == (retry.Policy{}) {
		opts.Retry = retry.DefaultPolicy()
	}
	return &Publisher{
		store:     store,
		sessions:  sessions,
		opts:      opts,
		notifier:  notifier,
		collector: collector,
		logger:    logger,
	}
}

// Publish uploads the local log. The version token is fetched right before
// the write; a missing remote file is created. A write rejected for a stale
// token is retried once with a freshly fetched token; rate limits and server
// errors are retried per call with backoff. Every outcome is
// reported through the notifier and the error is also returned.
func (p *Publisher) Publish(ctx context.Context) (Result, error) {
	session, err := p.sessions.Session(ctx, []string{auth.RepoScope})
	if err == nil && session == nil {
		err = auth.ErrNoSession
	}
	if err != nil {
		p.logger.Error("github session unavailable", "error", err)
		p.notifier.Error(MessageAuthFailed)
		p.collector.PublishFinished(string(models.PublishStatusFailed))
		return Result{Status: models.PublishStatusFailed}, fmt.Errorf("github session: %w", err)
	}

	data, err := os.ReadFile(p.opts.LocalPath)
	if err != nil {
		return p.fail(fmt.Errorf("read local log: %w", err))
	}

	var result Result
	err = retry.Do(ctx, retry.Once(), func(attempt int) error {
		sha, err := p.currentSHA(ctx, session)
		if err != nil {
			return err
		}

		var resp *github.PutContentResponse
		err = p.call(ctx, "write remote log", func() error {
			var err error
			resp, err = p.store.PutContent(ctx, session.AccessToken, session.AccountLabel, p.opts.Repository, p.opts.RemotePath, github.PutContentRequest{
				Message: p.opts.CommitMessage,
				Content: data,
				SHA:     sha,
			})
			return err
		})
		if errors.Is(err, github.ErrConflict) {
			p.logger.Warn("remote log changed since it was read",
				"attempt", attempt+1,
				"sha", sha,
				"error", err)
			return retry.Mark(err)
		}
		if err != nil {
			return err
		}

		result.Status = models.PublishStatusUpdated
		if sha == "" {
			result.Status = models.PublishStatusCreated
		}
		result.CommitSHA = resp.CommitSHA
		return nil
	})
	if err != nil {
		if errors.Is(err, github.ErrUnauthorized) {
			if inv, ok := p.sessions.(auth.Invalidator); ok {
				inv.Invalidate()
			}
		}
		return p.fail(err)
	}

	p.logger.Info("work log published",
		"account", session.AccountLabel,
		"repository", p.opts.Repository,
		"path", p.opts.RemotePath,
		"status", result.Status,
		"commit", result.CommitSHA,
		"bytes", len(data))
	p.notifier.Info(MessageSuccess)
	p.collector.PublishFinished(string(result.Status))
	return result, nil
}

// currentSHA returns the remote version token, or "" when the file does not
// exist yet.
func (p *Publisher) currentSHA(ctx context.Context, session *auth.Session) (string, error) {
	var content *github.Content
	err := p.call(ctx, "fetch remote log", func() error {
		var err error
		content, err = p.store.GetContent(ctx, session.AccessToken, session.AccountLabel, p.opts.Repository, p.opts.RemotePath)
		return err
	})
	if errors.Is(err, github.ErrNotFound) {
		p.logger.Debug("remote log does not exist yet", "path", p.opts.RemotePath)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("fetch remote log: %w", err)
	}
	return content.SHA, nil
}

// call runs one remote request, repeating it on rate limits and server
// errors as the retry policy allows. A requested wait longer than the
// policy's MaxBackoff is not honoured; the next cycle publishes instead.
func (p *Publisher) call(ctx context.Context, operation string, fn func() error) error {
	return retry.Do(ctx, p.opts.Retry, func(attempt int) error {
		err := fn()
		delay, transient := github.Transient(err)
		if !transient {
			return err
		}
		if limit := p.opts.Retry.MaxBackoff; limit > 0 && delay > limit {
			p.logger.Warn("github asked to wait too long, giving up until next cycle",
				"operation", operation,
				"retry_after", delay)
			return err
		}
		p.logger.Warn("github request failed, will retry",
			"operation", operation,
			"attempt", attempt+1,
			"retry_after", delay,
			"error", err)
		return retry.MarkWithDelay(err, delay)
	})
}

func (p *Publisher) fail(err error) (Result, error) {
	p.logger.Error("failed to publish work log", "error", err)
	p.notifier.Error(messageFailure + err.Error())
	p.collector.PublishFinished(string(models.PublishStatusFailed))
	return Result{Status: models.PublishStatusFailed}, err
}
