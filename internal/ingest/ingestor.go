// Package ingest turns file-change notifications into activity records.
package ingest

import (
	"log/slog"

	"github.com/codetribute/codetribute/internal/metrics"
	"github.com/codetribute/codetribute/internal/models"
)

// Appender receives normalized activity records.
type Appender interface {
	Append(record models.ActivityRecord)
}

// SampleFunc captures a bounded content snapshot for a path.
type SampleFunc func(path string) (string, bool)

// Ingestor normalizes created/modified/deleted notifications into activity
// records. Handle is safe to call from the watcher goroutine while the
// scheduler drains the buffer from another.
type Ingestor struct {
	buffer  Appender
	sample  SampleFunc
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewIngestor creates an ingestor backed by Sample.
func NewIngestor(buffer Appender, collector *metrics.Collector, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		buffer:  buffer,
		sample:  Sample,
		metrics: collector,
		logger:  logger,
	}
}

// WithSampler replaces the content sampler.
func (i *Ingestor) WithSampler(sample SampleFunc) *Ingestor {
	i.sample = sample
	return i
}

// Handle appends exactly one record for the notification. Content is sampled
// before the record is built for created/modified and never read for deleted.
// An unreadable file still produces a record, just without content.
func (i *Ingestor) Handle(action models.Action, path string) {
	if !action.Valid() {
		i.logger.Warn("ignoring unknown file action", "action", action, "path", path)
		return
	}

	var content *string
	if action != models.ActionDeleted {
		if text, ok := i.sample(path); ok {
			content = &text
		} else {
			i.logger.Debug("content not captured", "path", path, "action", action)
		}
	}

	record := models.NewActivityRecord(action, path, content)
	i.buffer.Append(record)
	i.metrics.EventIngested(string(action))

	i.logger.Debug("activity recorded",
		"record_id", record.ID,
		"action", record.Action,
		"folder", record.Folder,
		"file", record.FileName,
		"has_content", record.HasContent())
}
