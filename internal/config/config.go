package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Workspace  WorkspaceConfig
	Schedule   ScheduleConfig
	Summarizer SummarizerConfig
	GitHub     GitHubConfig
	Secrets    SecretsConfig
	Database   DatabaseConfig
	Kafka      KafkaConfig
	Server     ServerConfig
	Logging    LoggingConfig
}

// WorkspaceConfig describes the directory being observed and where the log lives.
type WorkspaceConfig struct {
	Root        string
	LogFileName string
	Ignore      []string
}

// LogPath returns the absolute location of the persisted work log.
func (w WorkspaceConfig) LogPath() string {
	return filepath.Join(w.Root, w.LogFileName)
}

// ScheduleConfig controls the flush cycle.
type ScheduleConfig struct {
	Interval        time.Duration
	FlushOnShutdown bool
}

// SummarizerConfig holds the chat-completion endpoint settings.
type SummarizerConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GitHubConfig holds remote store settings. Either Token or the App* fields
// may be used for credentials; with neither set the token is prompted for.
type GitHubConfig struct {
	APIURL            string
	Repository        string
	Path              string
	CommitMessage     string
	Token             string
	Account           string
	AppID             string
	AppInstallationID int64
	AppPrivateKeyPath string
	Timeout           time.Duration
}

// SecretsConfig locates the encrypted secret cache.
type SecretsConfig struct {
	Path       string
	Passphrase string
	Prompt     bool
}

// DatabaseConfig enables optional cycle history in Postgres. Retention of
// zero keeps every cycle.
type DatabaseConfig struct {
	URL       string
	Retention time.Duration
}

// KafkaConfig enables optional cycle events on a Kafka topic.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ServerConfig holds status HTTP server runtime parameters. An empty Port
// disables the server.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
	Output string
}

const (
	defaultLogFileName = "log.txt"
	defaultInterval    = 60 * time.Minute

	defaultSummarizerBaseURL = "https://api.groq.com/openai/v1"
	defaultSummarizerModel   = "llama-3.1-8b-instant"
	defaultSummarizerTimeout = 60 * time.Second

	defaultGitHubAPIURL    = "https://api.github.com"
	defaultRepository      = "codetribute-repo"
	defaultRemotePath      = "log.txt"
	defaultCommitMessage   = "Update log.txt"
	defaultGitHubTimeout   = 30 * time.Second
	defaultKafkaTopic      = "codetribute.cycles"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultLogFormat       = "json"
	defaultLogOutput       = "stderr"
	secretsFileName        = "secrets.json"
	secretsDirectoryName   = "codetribute"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	cfg := Config{
		Workspace: WorkspaceConfig{
			Root:        os.Getenv("WORKSPACE_ROOT"),
			LogFileName: getEnv("WORKLOG_FILE", defaultLogFileName),
			Ignore:      splitList(os.Getenv("WATCH_IGNORE")),
		},
		Schedule: ScheduleConfig{
			Interval: defaultInterval,
		},
		Summarizer: SummarizerConfig{
			APIKey:  os.Getenv("GROQ_API_KEY"),
			BaseURL: getEnv("SUMMARIZER_BASE_URL", defaultSummarizerBaseURL),
			Model:   getEnv("SUMMARIZER_MODEL", defaultSummarizerModel),
			Timeout: defaultSummarizerTimeout,
		},
		GitHub: GitHubConfig{
			APIURL:            strings.TrimRight(getEnv("GITHUB_API_URL", defaultGitHubAPIURL), "/"),
			Repository:        getEnv("GITHUB_REPOSITORY_NAME", defaultRepository),
			Path:              getEnv("GITHUB_LOG_PATH", defaultRemotePath),
			CommitMessage:     getEnv("GITHUB_COMMIT_MESSAGE", defaultCommitMessage),
			Token:             os.Getenv("GITHUB_TOKEN"),
			Account:           os.Getenv("GITHUB_ACCOUNT"),
			AppID:             os.Getenv("GITHUB_APP_ID"),
			AppPrivateKeyPath: os.Getenv("GITHUB_APP_PRIVATE_KEY_PATH"),
			Timeout:           defaultGitHubTimeout,
		},
		Secrets: SecretsConfig{
			Path:       os.Getenv("SECRETS_PATH"),
			Passphrase: os.Getenv("SECRETS_PASSPHRASE"),
			Prompt:     true,
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", defaultKafkaTopic),
		},
		Server: ServerConfig{
			Port:            os.Getenv("STATUS_PORT"),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
			Output: defaultLogOutput,
		},
	}

	if v := os.Getenv("SCHEDULE_INTERVAL_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			return Config{}, fmt.Errorf("invalid SCHEDULE_INTERVAL_MINUTES: must be a positive integer")
		}
		cfg.Schedule.Interval = time.Duration(minutes) * time.Minute
	}

	if v := os.Getenv("FLUSH_ON_SHUTDOWN"); v != "" {
		flush, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FLUSH_ON_SHUTDOWN: %w", err)
		}
		cfg.Schedule.FlushOnShutdown = flush
	}

	if v := os.Getenv("SUMMARIZER_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SUMMARIZER_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Summarizer.Timeout = d
	}

	if v := os.Getenv("GITHUB_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GITHUB_TIMEOUT_SECONDS: %w", err)
		}
		cfg.GitHub.Timeout = d
	}

	if v := os.Getenv("GITHUB_APP_INSTALLATION_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return Config{}, fmt.Errorf("invalid GITHUB_APP_INSTALLATION_ID: must be a positive integer")
		}
		cfg.GitHub.AppInstallationID = id
	}

	if (cfg.GitHub.AppID == "") != (cfg.GitHub.AppPrivateKeyPath == "") {
		return Config{}, fmt.Errorf("GITHUB_APP_ID and GITHUB_APP_PRIVATE_KEY_PATH must be set together")
	}
	if cfg.GitHub.AppID != "" && cfg.GitHub.AppInstallationID == 0 {
		return Config{}, fmt.Errorf("GITHUB_APP_INSTALLATION_ID is required when GITHUB_APP_ID is set")
	}

	if v := os.Getenv("CYCLE_RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			return Config{}, fmt.Errorf("invalid CYCLE_RETENTION_DAYS: must be a non-negative integer")
		}
		cfg.Database.Retention = time.Duration(days) * 24 * time.Hour
	}

	if v := os.Getenv("SECRETS_PROMPT"); v != "" {
		prompt, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SECRETS_PROMPT: %w", err)
		}
		cfg.Secrets.Prompt = prompt
	}

	if cfg.Secrets.Path == "" {
		cfg.Secrets.Path = defaultSecretsPath()
	}

	if v := os.Getenv("STATUS_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid STATUS_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("STATUS_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid STATUS_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("STATUS_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid STATUS_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		switch v {
		case "stdout", "stderr":
			cfg.Logging.Output = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_OUTPUT: must be 'stdout' or 'stderr'")
		}
	}

	return cfg, nil
}

// ResolveWorkspace validates the workspace root and makes it absolute. A
// missing root is fatal: nothing in the pipeline can start without it.
func (c *Config) ResolveWorkspace() error {
	if c.Workspace.Root == "" {
		return fmt.Errorf("no workspace folder detected: set WORKSPACE_ROOT or pass --root")
	}

	abs, err := filepath.Abs(c.Workspace.Root)
	if err != nil {
		return fmt.Errorf("resolve workspace root: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("workspace root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace root %s is not a directory", abs)
	}

	c.Workspace.Root = abs
	return nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func defaultSecretsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, secretsDirectoryName, secretsFileName)
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
