package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/codetribute/codetribute/internal/config"
	"github.com/codetribute/codetribute/internal/logging"
)

const (
	commandRun        = "run"
	commandCreateRepo = "create-repo"
)

// options holds command-line overrides for the environment configuration.
type options struct {
	command  string
	root     string
	interval int
	help     bool
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if opts.help {
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	opts.apply(&cfg)

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	switch opts.command {
	case commandCreateRepo:
		err = app.createRepo(ctx)
	default:
		err = app.run(ctx)
	}
	if err != nil {
		logger.Error("exiting", "command", opts.command, "error", err)
		stop()
		os.Exit(1)
	}
}

func parseArgs(args []string) (options, error) {
	opts := options{command: commandRun}

	flagSet := pflag.NewFlagSet("codetribute", pflag.ContinueOnError)
	flagSet.StringVar(&opts.root, "root", "", "workspace folder to observe (overrides WORKSPACE_ROOT)")
	flagSet.IntVar(&opts.interval, "interval", 0, "minutes between log cycles (overrides SCHEDULE_INTERVAL_MINUTES)")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.help = true
			return opts, nil
		}
		return opts, err
	}
	if opts.help {
		printHelp(flagSet)
		return opts, nil
	}
	if opts.interval < 0 {
		return opts, fmt.Errorf("--interval must be positive")
	}

	rest := flagSet.Args()
	if len(rest) > 1 {
		return opts, fmt.Errorf("unexpected argument: %s", rest[1])
	}
	if len(rest) == 1 {
		switch rest[0] {
		case commandRun, commandCreateRepo:
			opts.command = rest[0]
		default:
			return opts, fmt.Errorf("unknown command: %s", rest[0])
		}
	}
	return opts, nil
}

func (o options) apply(cfg *config.Config) {
	if o.root != "" {
		cfg.Workspace.Root = o.root
	}
	if o.interval > 0 {
		cfg.Schedule.Interval = minutes(o.interval)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `codetribute records file activity in a workspace, appends a summarized
work log to <root>/log.txt on a fixed interval and pushes it to GitHub.

Usage:
  codetribute [flags] [run]
  codetribute [flags] create-repo

Commands:
  run          watch the workspace and publish the log (default)
  create-repo  create the private log repository on GitHub

Flags:
%s`, flagSet.FlagUsages())
}
