package worklog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// EntrySeparator follows every appended entry.
const EntrySeparator = "\n\n"

// EnsureFile creates an empty log file when none exists. It reports whether
// the file was created. Called once at startup.
func EnsureFile(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat log file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create log file: %w", err)
	}
	return true, f.Close()
}

// Persister appends entries to the local work log. Existing content is never
// rewritten.
type Persister struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewPersister creates a persister for the file at path.
func NewPersister(path string, logger *slog.Logger) *Persister {
	return &Persister{path: path, logger: logger}
}

// Path returns the log file location.
func (p *Persister) Path() string {
	return p.path
}

// Append writes entry followed by EntrySeparator to the end of the log.
func (p *Persister) Append(entry string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	if _, err := f.WriteString(entry + EntrySeparator); err != nil {
		f.Close()
		return fmt.Errorf("append to log file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}

	p.logger.Info("log file updated", "path", p.path, "bytes", len(entry)+len(EntrySeparator))
	return nil
}
