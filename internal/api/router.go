package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/codetribute/codetribute/internal/metrics"
)

// Dependencies are the components the status routes read from. Cycles and
// DB may be nil when history is not configured.
type Dependencies struct {
	Scheduler SchedulerStatus
	Buffer    BufferStatus
	Cycles    CycleLister
	DB        *sql.DB
	Metrics   *metrics.Collector
	Workspace string
	Logger    *slog.Logger
}

// SetupRoutes configures the status routes on mux.
func SetupRoutes(mux *http.ServeMux, deps Dependencies) {
	handlers := NewStatusHandlers(deps)

	mux.HandleFunc("/healthz", handlers.Health)
	mux.HandleFunc("/status", handlers.Status)
	mux.HandleFunc("/cycles", handlers.ListCycles)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics.Handler())
	}
}

// NewHandler builds the instrumented status handler.
func NewHandler(deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	SetupRoutes(mux, deps)
	if deps.Metrics == nil {
		return mux
	}
	return deps.Metrics.InstrumentHandler(mux)
}
