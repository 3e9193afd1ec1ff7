// Package notify delivers short, non-blocking messages to the operator.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Notifier surfaces user-facing outcomes. Implementations must not block the
// caller for long and must never fail.
type Notifier interface {
	Info(message string)
	Error(message string)
}

// LogNotifier records notifications in the structured log and, when a
// console writer is set, echoes them there as single lines.
type LogNotifier struct {
	logger  *slog.Logger
	mu      sync.Mutex
	console io.Writer
}

// NewLogNotifier creates a notifier. console may be nil.
func NewLogNotifier(logger *slog.Logger, console io.Writer) *LogNotifier {
	return &LogNotifier{logger: logger, console: console}
}

// Info reports a successful outcome.
func (n *LogNotifier) Info(message string) {
	n.logger.Info(message, "notification", true)
	n.echo("info", message)
}

// Error reports a failure.
func (n *LogNotifier) Error(message string) {
	n.logger.Error(message, "notification", true)
	n.echo("error", message)
}

func (n *LogNotifier) echo(level, message string) {
	if n.console == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.console, "[codetribute] %s: %s\n", level, message)
}

// Recorder keeps notifications in memory. Useful in tests.
type Recorder struct {
	mu     sync.Mutex
	Infos  []string
	Errors []string
}

func (r *Recorder) Info(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Infos = append(r.Infos, message)
}

func (r *Recorder) Error(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, message)
}

// Snapshot returns copies of the recorded messages.
func (r *Recorder) Snapshot() (infos, errs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Infos...), append([]string(nil), r.Errors...)
}
