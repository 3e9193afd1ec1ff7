package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/codetribute/codetribute/internal/database"
	"github.com/codetribute/codetribute/internal/models"
	"github.com/codetribute/codetribute/internal/scheduler"
)

// SchedulerStatus exposes the scheduler's phase and last result.
type SchedulerStatus interface {
	State() scheduler.State
	LastReport() (models.CycleReport, bool)
	NextTick() time.Time
	Interval() time.Duration
}

// BufferStatus reports how many records are waiting.
type BufferStatus interface {
	Len() int
}

// CycleLister reads cycle history.
type CycleLister interface {
	List(ctx context.Context, limit int, outcome models.CycleOutcome) ([]models.CycleReport, error)
}

// StatusHandlers serves daemon status.
type StatusHandlers struct {
	scheduler SchedulerStatus
	buffer    BufferStatus
	cycles    CycleLister
	db        *sql.DB
	workspace string
	started   time.Time
	logger    *slog.Logger
}

// NewStatusHandlers creates the handlers.
func NewStatusHandlers(deps Dependencies) *StatusHandlers {
	return &StatusHandlers{
		scheduler: deps.Scheduler,
		buffer:    deps.Buffer,
		cycles:    deps.Cycles,
		db:        deps.DB,
		workspace: deps.Workspace,
		started:   time.Now(),
		logger:    deps.Logger,
	}
}

// Health handles GET /healthz
func (h *StatusHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := database.HealthCheck(r.Context(), h.db); err != nil {
			h.logger.Warn("database health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":   "degraded",
				"database": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Status handles GET /status
func (h *StatusHandlers) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := map[string]any{
		"workspace":      h.workspace,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	}
	if h.buffer != nil {
		body["buffered_records"] = h.buffer.Len()
	}
	if h.scheduler != nil {
		body["state"] = h.scheduler.State()
		body["interval_seconds"] = int(h.scheduler.Interval().Seconds())
		if next := h.scheduler.NextTick(); !next.IsZero() {
			body["next_cycle_at"] = next
		}
		if report, ok := h.scheduler.LastReport(); ok {
			body["last_cycle"] = report
		}
	}
	if h.db != nil {
		body["database"] = database.Stats(h.db)
	}

	writeJSON(w, http.StatusOK, body)
}

// ListCycles handles GET /cycles
func (h *StatusHandlers) ListCycles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.cycles == nil {
		http.Error(w, "Cycle history is not configured", http.StatusNotFound)
		return
	}

	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	outcome := models.CycleOutcome(r.URL.Query().Get("outcome"))
	switch outcome {
	case "", models.CycleOutcomeCompleted, models.CycleOutcomeDegraded, models.CycleOutcomeSkipped:
	default:
		http.Error(w, "Invalid outcome", http.StatusBadRequest)
		return
	}

	cycles, err := h.cycles.List(r.Context(), limit, outcome)
	if err != nil {
		h.logger.Error("failed to list cycles", "error", err)
		http.Error(w, "Failed to retrieve cycles", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cycles": cycles,
		"count":  len(cycles),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
