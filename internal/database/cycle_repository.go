package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/codetribute/codetribute/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	pruneInterval    = time.Hour
)

// CycleRepository handles cycle history storage and retrieval.
type CycleRepository struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time

	mu        sync.Mutex
	lastPrune time.Time
}

// NewCycleRepository creates a new cycle repository.
func NewCycleRepository(db *sql.DB) *CycleRepository {
	return &CycleRepository{db: db, now: time.Now}
}

// WithRetention makes ObserveCycle delete cycles older than age, at most once
// an hour. Zero keeps history forever.
func (r *CycleRepository) WithRetention(age time.Duration) *CycleRepository {
	r.retention = age
	return r
}

// Record stores a cycle report. Re-recording the same ID is a no-op.
func (r *CycleRepository) Record(ctx context.Context, report models.CycleReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}

	query := `
		INSERT INTO cycles (
			id, started_at, finished_at, outcome, record_count,
			created_files, modified_files, deleted_files,
			summary, summary_status, persisted, publish_status, commit_sha, error, duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.StartedAt,
		report.FinishedAt,
		report.Outcome,
		report.RecordCount,
		pq.Array(nonNil(report.CreatedFiles)),
		pq.Array(nonNil(report.ModifiedFiles)),
		pq.Array(nonNil(report.DeletedFiles)),
		report.Summary,
		report.SummaryStatus,
		report.Persisted,
		report.PublishStatus,
		report.CommitSHA,
		report.Error,
		report.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to record cycle %s: %w", report.ID, err)
	}
	return nil
}

// ObserveCycle records every cycle that did work and prunes expired history.
// Skipped ticks are not stored.
func (r *CycleRepository) ObserveCycle(ctx context.Context, report models.CycleReport) error {
	if report.Outcome == models.CycleOutcomeSkipped {
		return nil
	}
	if err := r.Record(ctx, report); err != nil {
		return err
	}
	if !r.pruneDue(r.now()) {
		return nil
	}
	if _, err := r.DeleteOlderThan(ctx, r.retention); err != nil {
		return fmt.Errorf("failed to prune cycle history: %w", err)
	}
	return nil
}

func (r *CycleRepository) pruneDue(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retention <= 0 {
		return false
	}
	if !r.lastPrune.IsZero() && now.Sub(r.lastPrune) < pruneInterval {
		return false
	}
	r.lastPrune = now
	return true
}

// List retrieves recent cycles, newest first, optionally filtered by outcome.
func (r *CycleRepository) List(ctx context.Context, limit int, outcome models.CycleOutcome) ([]models.CycleReport, error) {
	limit = clampLimit(limit)

	query := `
		SELECT id, started_at, finished_at, outcome, record_count,
			created_files, modified_files, deleted_files,
			summary, summary_status, persisted, publish_status, commit_sha, error, duration_ms
		FROM cycles
		WHERE 1=1
	`
	args := []any{}
	argPos := 1

	if outcome != "" {
		query += fmt.Sprintf(" AND outcome = $%d", argPos)
		args = append(args, outcome)
		argPos++
	}

	query += " ORDER BY started_at DESC"
	query += fmt.Sprintf(" LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []models.CycleReport{}
	for rows.Next() {
		var report models.CycleReport
		var errText sql.NullString

		err := rows.Scan(
			&report.ID,
			&report.StartedAt,
			&report.FinishedAt,
			&report.Outcome,
			&report.RecordCount,
			pq.Array(&report.CreatedFiles),
			pq.Array(&report.ModifiedFiles),
			pq.Array(&report.DeletedFiles),
			&report.Summary,
			&report.SummaryStatus,
			&report.Persisted,
			&report.PublishStatus,
			&report.CommitSHA,
			&errText,
			&report.DurationMs,
		)
		if err != nil {
			return nil, err
		}
		if errText.Valid {
			report.Error = &errText.String
		}

		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// DeleteOlderThan deletes cycles that started before now minus age.
func (r *CycleRepository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < $1`, r.now().Add(-age))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
