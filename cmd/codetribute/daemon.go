package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codetribute/codetribute/internal/api"
	"github.com/codetribute/codetribute/internal/buffer"
	"github.com/codetribute/codetribute/internal/database"
	"github.com/codetribute/codetribute/internal/events"
	"github.com/codetribute/codetribute/internal/ingest"
	"github.com/codetribute/codetribute/internal/logging"
	"github.com/codetribute/codetribute/internal/publish"
	"github.com/codetribute/codetribute/internal/scheduler"
	"github.com/codetribute/codetribute/internal/secrets"
	"github.com/codetribute/codetribute/internal/server"
	"github.com/codetribute/codetribute/internal/summarizer"
	"github.com/codetribute/codetribute/internal/worklog"
)

// run watches the workspace and drives the scheduler until ctx is done.
func (a *app) run(ctx context.Context) error {
	cfg := a.cfg
	if err := cfg.ResolveWorkspace(); err != nil {
		a.notifier.Error(messageNoWorkspace)
		return err
	}
	root := cfg.Workspace.Root
	logPath := cfg.Workspace.LogPath()

	a.logger.Info("starting codetribute", "workspace", root, "interval", cfg.Schedule.Interval)

	created, err := worklog.EnsureFile(logPath)
	if err != nil {
		return fmt.Errorf("prepare work log: %w", err)
	}
	if created {
		a.logger.Info("created work log", "path", logPath)
	}

	apiKey, err := a.resolver.Resolve(secrets.Lookup{
		Name:          secrets.GroqAPIKey,
		Value:         cfg.Summarizer.APIKey,
		Label:         "Groq API Key",
		SavedNotice:   messageKeySaved,
		MissingNotice: messageKeyRequired,
	})
	if err != nil {
		a.logger.Warn("summarizer disabled", "error", err)
	}
	cfg.Summarizer.APIKey = apiKey
	sum := summarizer.NewFromConfig(cfg.Summarizer, a.collector, logging.Component(a.logger, "summarizer"))

	publisher := publish.New(a.github, a.sessions, publish.Options{
		LocalPath:     logPath,
		Repository:    cfg.GitHub.Repository,
		RemotePath:    cfg.GitHub.Path,
		CommitMessage: cfg.GitHub.CommitMessage,
	}, a.notifier, a.collector, logging.Component(a.logger, "publisher"))

	buf := buffer.New()
	ingestor := ingest.NewIngestor(buf, a.collector, logging.Component(a.logger, "ingest"))
	matcher := ingest.NewMatcher(root, cfg.Workspace.Ignore, logPath)
	watcher := ingest.NewWatcher(root, matcher, ingestor, logging.Component(a.logger, "watcher"))

	var observers []scheduler.CycleObserver
	deps := api.Dependencies{
		Buffer:    buf,
		Metrics:   a.collector,
		Workspace: root,
		Logger:    logging.Component(a.logger, "api"),
	}

	if cfg.Database.URL != "" {
		db, err := database.Connect(ctx, database.DefaultConfig(cfg.Database.URL))
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.RunMigrations(ctx, db, logging.Component(a.logger, "database")); err != nil {
			return err
		}
		repo := database.NewCycleRepository(db).WithRetention(cfg.Database.Retention)
		observers = append(observers, repo)
		deps.Cycles = repo
		deps.DB = db
		a.logger.Info("cycle history enabled", "retention", cfg.Database.Retention)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		emitter := events.NewKafkaEmitter(cfg.Kafka.Brokers, cfg.Kafka.Topic, logging.Component(a.logger, "events"))
		defer func() {
			if err := emitter.Close(); err != nil {
				a.logger.Warn("failed to close kafka writer", "error", err)
			}
		}()
		observers = append(observers, emitter)
		a.logger.Info("cycle events enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	cycle := scheduler.NewCycle(buf, sum, worklog.NewPersister(logPath, logging.Component(a.logger, "worklog")), publisher, a.collector, logging.Component(a.logger, "cycle"), observers...)
	sched := scheduler.New(cycle, cfg.Schedule.Interval, cfg.Schedule.FlushOnShutdown, logging.Component(a.logger, "scheduler"))
	deps.Scheduler = sched

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	watchErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := watcher.Run(ctx); err != nil {
			watchErr <- err
			cancel()
		}
	}()

	var srv *server.Server
	if cfg.Server.Port != "" {
		srv = server.New(cfg.Server, logging.Component(a.logger, "server"), api.NewHandler(deps))
		go func() {
			if err := srv.Start(); err != nil {
				a.logger.Error("status server error", "error", err)
			}
		}()
	}

	sched.Start(ctx)

	if srv != nil {
		if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
			a.logger.Error("shutdown error", "error", err)
		}
	}
	wg.Wait()

	select {
	case err := <-watchErr:
		return err
	default:
	}

	logShutdown(a.logger, buf.Len())
	return nil
}

func logShutdown(logger *slog.Logger, pending int) {
	if pending > 0 {
		logger.Warn("shutdown complete with unpublished activity", "records", pending)
		return
	}
	logger.Info("shutdown complete")
}
