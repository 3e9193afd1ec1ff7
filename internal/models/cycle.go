package models

import "time"

// CycleOutcome describes how a scheduler tick ended.
type CycleOutcome string

const (
	CycleOutcomeSkipped   CycleOutcome = "skipped"
	CycleOutcomeCompleted CycleOutcome = "completed"
	CycleOutcomeDegraded  CycleOutcome = "degraded"
)

// SummaryStatus records which path the summarizer took.
type SummaryStatus string

const (
	SummaryStatusGenerated SummaryStatus = "generated"
	SummaryStatusEmpty     SummaryStatus = "empty"
	SummaryStatusError     SummaryStatus = "error"
)

// PublishStatus records the result of pushing the log to the remote store.
type PublishStatus string

const (
	PublishStatusCreated PublishStatus = "created"
	PublishStatusUpdated PublishStatus = "updated"
	PublishStatusFailed  PublishStatus = "failed"
)

// CycleReport summarizes one drain → format → summarize → persist → publish run.
type CycleReport struct {
	ID            string        `json:"id"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Outcome       CycleOutcome  `json:"outcome"`
	RecordCount   int           `json:"record_count"`
	CreatedFiles  []string      `json:"created_files"`
	ModifiedFiles []string      `json:"modified_files"`
	DeletedFiles  []string      `json:"deleted_files"`
	Summary       string        `json:"summary"`
	SummaryStatus SummaryStatus `json:"summary_status"`
	Persisted     bool          `json:"persisted"`
	PublishStatus PublishStatus `json:"publish_status"`
	CommitSHA     string        `json:"commit_sha,omitempty"`
	Error         *string       `json:"error,omitempty"`
	DurationMs    int           `json:"duration_ms"`
}
