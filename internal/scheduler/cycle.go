package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codetribute/codetribute/internal/metrics"
	"github.com/codetribute/codetribute/internal/models"
	"github.com/codetribute/codetribute/internal/publish"
	"github.com/codetribute/codetribute/internal/worklog"
)

// Drainer hands over every buffered record at once.
type Drainer interface {
	Drain() []models.ActivityRecord
	Len() int
}

// Summarizer condenses a batch. It must always return text.
type Summarizer interface {
	Summarize(ctx context.Context, batch []models.ActivityRecord) (string, models.SummaryStatus)
}

// EntryWriter persists a combined log entry locally.
type EntryWriter interface {
	Append(entry string) error
}

// Publisher pushes the local log to the remote store.
type Publisher interface {
	Publish(ctx context.Context) (publish.Result, error)
}

// CycleObserver is told about every finished cycle, including skipped ones.
// Errors are logged and never affect the cycle.
type CycleObserver interface {
	ObserveCycle(ctx context.Context, report models.CycleReport) error
}

// Cycle is one drain, format, summarize, persist, publish pass.
type Cycle struct {
	buffer     Drainer
	summarizer Summarizer
	persister  EntryWriter
	publisher  Publisher
	observers  []CycleObserver
	collector  *metrics.Collector
	logger     *slog.Logger
	now        func() time.Time
}

// NewCycle wires a cycle.
func NewCycle(buffer Drainer, summarizer Summarizer, persister EntryWriter, publisher Publisher, collector *metrics.Collector, logger *slog.Logger, observers ...CycleObserver) *Cycle {
	return &Cycle{
		buffer:     buffer,
		summarizer: summarizer,
		persister:  persister,
		publisher:  publisher,
		observers:  observers,
		collector:  collector,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one cycle. An empty buffer skips everything, including the
// summarizer and the remote calls. Otherwise busy, when set, is called before
// the batch is processed. Failures in any step are logged and recorded in the
// report; later steps still run.
func (c *Cycle) Run(ctx context.Context, busy func()) models.CycleReport {
	start := c.now()
	report := models.CycleReport{
		ID:        uuid.NewString(),
		StartedAt: start,
	}

	batch := c.buffer.Drain()
	c.collector.SetBuffered(c.buffer.Len())

	if len(batch) == 0 {
		report.Outcome = models.CycleOutcomeSkipped
		report.FinishedAt = c.now()
		c.logger.Debug("no activity since last cycle, skipping", "cycle_id", report.ID)
		c.collector.CycleFinished(string(report.Outcome), 0)
		c.notifyObservers(ctx, report)
		return report
	}

	if busy != nil {
		busy()
	}
	c.logger.Info("updating logs", "cycle_id", report.ID, "records", len(batch))

	block := worklog.Build(batch, start)
	report.RecordCount = len(batch)
	report.CreatedFiles = block.CreatedFiles
	report.ModifiedFiles = block.ModifiedFiles
	report.DeletedFiles = block.DeletedFiles

	var failures []string

	summary, status := c.summarizer.Summarize(ctx, batch)
	report.Summary = summary
	report.SummaryStatus = status

	entry := worklog.Combine(block.Render(), summary)
	if err := c.persister.Append(entry); err != nil {
		c.logger.Error("error writing to log file", "cycle_id", report.ID, "error", err)
		failures = append(failures, fmt.Sprintf("persist: %v", err))
	} else {
		report.Persisted = true
	}

	result, err := c.publisher.Publish(ctx)
	report.PublishStatus = result.Status
	report.CommitSHA = result.CommitSHA
	if err != nil {
		failures = append(failures, fmt.Sprintf("publish: %v", err))
	}

	report.Outcome = models.CycleOutcomeCompleted
	if len(failures) > 0 || status != models.SummaryStatusGenerated {
		report.Outcome = models.CycleOutcomeDegraded
	}
	if len(failures) > 0 {
		msg := strings.Join(failures, "; ")
		report.Error = &msg
	}

	report.FinishedAt = c.now()
	duration := report.FinishedAt.Sub(start)
	report.DurationMs = int(duration.Milliseconds())

	c.logger.Info("cycle finished",
		"cycle_id", report.ID,
		"outcome", report.Outcome,
		"records", report.RecordCount,
		"summary_status", report.SummaryStatus,
		"publish_status", report.PublishStatus,
		"duration_ms", report.DurationMs)
	c.collector.CycleFinished(string(report.Outcome), duration)
	c.notifyObservers(ctx, report)
	return report
}

func (c *Cycle) notifyObservers(ctx context.Context, report models.CycleReport) {
	for _, observer := range c.observers {
		if err := observer.ObserveCycle(ctx, report); err != nil {
			c.logger.Warn("cycle observer failed",
				"cycle_id", report.ID,
				"observer", fmt.Sprintf("%T", observer),
				"error", err)
		}
	}
}
