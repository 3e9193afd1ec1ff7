// Package scheduler drives the periodic work-log cycle.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codetribute/codetribute/internal/models"
)

// State is the scheduler's externally visible phase.
type State string

const (
	StateIdle       State = "idle"
	StatePublishing State = "publishing"
)

// finalFlushTimeout bounds the shutdown cycle, which runs after the parent
// context is already cancelled.
const finalFlushTimeout = 2 * time.Minute

// Runner executes one cycle. It calls busy once the drain hands over records,
// and not at all when the buffer was empty. busy may be nil.
type Runner interface {
	Run(ctx context.Context, busy func()) models.CycleReport
}

// Scheduler runs a cycle on every tick. Cycles run off the ticker goroutine;
// a tick that arrives while the previous cycle is still running is skipped.
type Scheduler struct {
	cycle           Runner
	interval        time.Duration
	flushOnShutdown bool
	logger          *slog.Logger
	stopChan        chan struct{}
	stopOnce        sync.Once
	inflight        sync.WaitGroup

	mu         sync.Mutex
	running    bool
	state      State
	lastReport *models.CycleReport
	lastTick   time.Time
}

// New creates a scheduler.
func New(cycle Runner, interval time.Duration, flushOnShutdown bool, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cycle:           cycle,
		interval:        interval,
		flushOnShutdown: flushOnShutdown,
		logger:          logger,
		stopChan:        make(chan struct{}),
		state:           StateIdle,
	}
}

// Start blocks, ticking until ctx is cancelled or Stop is called. Once the
// loop exits it waits for the running cycle and, when configured, runs a
// final cycle so buffered records are not lost.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting work log scheduler", "interval", s.interval, "flush_on_shutdown", s.flushOnShutdown)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			s.logger.Info("work log scheduler stopped")
			s.shutdown(ctx)
			return
		case <-ctx.Done():
			s.logger.Info("work log scheduler stopping due to context cancellation")
			s.shutdown(ctx)
			return
		}
	}
}

// Stop ends the loop started by Start. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// RunNow runs a cycle synchronously unless one is already running, in which
// case it reports false.
func (s *Scheduler) RunNow(ctx context.Context) (models.CycleReport, bool) {
	if !s.begin() {
		return models.CycleReport{}, false
	}
	return s.run(ctx), true
}

// State reports Publishing while a cycle is working through drained records.
// A cycle that found the buffer empty never leaves Idle.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastReport returns the most recent cycle that had records to publish.
// Skipped cycles do not replace it.
func (s *Scheduler) LastReport() (models.CycleReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReport == nil {
		return models.CycleReport{}, false
	}
	return *s.lastReport, true
}

// NextTick estimates when the next tick fires. Zero before the first tick.
func (s *Scheduler) NextTick() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastTick.IsZero() {
		return time.Time{}
	}
	return s.lastTick.Add(s.interval)
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	s.lastTick = time.Now()
	s.mu.Unlock()

	if !s.begin() {
		s.logger.Warn("previous cycle still running, skipping tick")
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.run(ctx)
	}()
}

// begin claims the cycle slot and reports whether it was free.
func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) publishing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StatePublishing
}

func (s *Scheduler) run(ctx context.Context) models.CycleReport {
	report := s.cycle.Run(ctx, s.publishing)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.state = StateIdle
	if report.Outcome != models.CycleOutcomeSkipped {
		s.lastReport = &report
	}
	return report
}

func (s *Scheduler) shutdown(ctx context.Context) {
	s.inflight.Wait()
	if !s.flushOnShutdown {
		return
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
	defer cancel()

	s.logger.Info("running final cycle before shutdown")
	s.RunNow(flushCtx)
}
