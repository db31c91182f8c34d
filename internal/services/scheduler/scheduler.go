// Package scheduler triggers the daily run on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/common"
)

// ErrRunInProgress is returned by RunNow while a run is still executing
var ErrRunInProgress = errors.New("a run is already in progress")

// Handler executes one scheduled run
type Handler func(ctx context.Context) error

// Status is a point-in-time view of the scheduler
type Status struct {
	Schedule  string     `json:"schedule"`
	Running   bool       `json:"running"`
	Busy      bool       `json:"busy"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Service runs Handler on a 5 field cron schedule, evaluated in UTC.
// Overlapping triggers are skipped.
type Service struct {
	schedule string
	handler  Handler
	cron     *cron.Cron
	logger   arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	running   bool
	busy      bool
	entryID   cron.EntryID
	lastRun   *time.Time
	lastError string
}

// NewService validates the schedule and creates a stopped scheduler
func NewService(schedule string, handler Handler, logger arbor.ILogger) (*Service, error) {
	if err := common.ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.New("scheduler: handler is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		schedule: schedule,
		handler:  handler,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start registers the daily run and starts the cron loop
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	id, err := s.cron.AddFunc(s.schedule, s.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.schedule).
		Str("next_run", s.cron.Entry(id).Next.Format(time.RFC3339)).
		Msg("Scheduler started")
	return nil
}

// Stop cancels any in-flight run and waits for it to return or ctx to expire
func (s *Service) Stop(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.logger.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("Scheduler stop timed out waiting for the current run")
		return ctx.Err()
	}
}

// RunNow executes the handler immediately on the caller's goroutine. The run is
// cancelled when either ctx or the scheduler is stopped.
func (s *Service) RunNow(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	return s.execute(ctx, "manual")
}

// IsRunning reports whether the cron loop is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns the current scheduler state
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Schedule:  s.schedule,
		Running:   s.running,
		Busy:      s.busy,
		LastRun:   s.lastRun,
		LastError: s.lastError,
	}
	if s.running {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	return st
}

func (s *Service) runScheduled() {
	if err := s.execute(s.ctx, "cron"); err != nil && !errors.Is(err, ErrRunInProgress) {
		s.logger.Error().Err(err).Msg("Scheduled run failed")
	}
}

func (s *Service) execute(ctx context.Context, trigger string) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.logger.Warn().Str("trigger", trigger).Msg("Run already in progress, skipping trigger")
		return ErrRunInProgress
	}
	s.busy = true
	s.mu.Unlock()

	start := time.Now()
	s.logger.Info().Str("trigger", trigger).Msg("Daily run triggered")

	err := common.SafeCall(s.logger, "scheduled_run", func() error {
		return s.handler(ctx)
	})

	finished := time.Now()
	s.mu.Lock()
	s.busy = false
	s.lastRun = &finished
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("trigger", trigger).
		Dur("duration", finished.Sub(start)).
		Bool("ok", err == nil).
		Msg("Daily run completed")
	return err
}
