package rollover

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Resetter zeroes cost accumulators. budget.Guardrails implements it.
type Resetter interface {
	ResetDailyCosts()
	ResetMonthlyCosts()
}

// Config holds the reset schedules as standard five-field cron
// expressions. An empty schedule disables that reset.
type Config struct {
	DailySchedule   string
	MonthlySchedule string

	// Location is the time zone the schedules are evaluated in.
	// Default: UTC
	Location *time.Location
}

// Scheduler triggers the daily and monthly budget resets on their cron
// schedules.
type Scheduler struct {
	resetter Resetter
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	daily   cron.EntryID
	monthly cron.EntryID
	running bool
}

// NewScheduler creates a scheduler. It does nothing until Start.
func NewScheduler(r Resetter, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		resetter: r,
		cfg:      cfg,
		logger:   logger.With("component", "budget.rollover"),
	}
}

// Start validates the schedules and begins running them. Cancelling ctx
// stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("rollover scheduler already running")
	}

	c := cron.New(cron.WithLocation(s.cfg.Location))

	var err error
	if s.daily, err = s.add(c, "daily", s.cfg.DailySchedule, s.resetDaily); err != nil {
		return err
	}
	if s.monthly, err = s.add(c, "monthly", s.cfg.MonthlySchedule, s.resetMonthly); err != nil {
		return err
	}
	if len(c.Entries()) == 0 {
		s.logger.Info("no rollover schedule configured, skipping scheduler")
		return nil
	}

	c.Start()
	s.cron = c
	s.running = true

	s.logger.Info("rollover scheduler started",
		"daily_schedule", s.cfg.DailySchedule,
		"monthly_schedule", s.cfg.MonthlySchedule,
		"timezone", s.cfg.Location.String(),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) add(c *cron.Cron, name, spec string, job func()) (cron.EntryID, error) {
	if spec == "" {
		return 0, nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return 0, fmt.Errorf("invalid %s rollover schedule %q: %w", name, spec, err)
	}
	id, err := c.AddFunc(spec, job)
	if err != nil {
		return 0, fmt.Errorf("failed to schedule %s rollover: %w", name, err)
	}
	return id, nil
}

func (s *Scheduler) resetDaily() {
	s.logger.Info("running daily budget rollover")
	s.resetter.ResetDailyCosts()
}

func (s *Scheduler) resetMonthly() {
	s.logger.Info("running monthly budget rollover")
	s.resetter.ResetMonthlyCosts()
}

// Stop stops the scheduler and waits for a running reset to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("rollover scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRuns returns the next daily and monthly reset times. A zero time
// means the reset is not scheduled.
func (s *Scheduler) NextRuns() (daily, monthly time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return time.Time{}, time.Time{}
	}
	if s.daily != 0 {
		daily = s.cron.Entry(s.daily).Next
	}
	if s.monthly != 0 {
		monthly = s.cron.Entry(s.monthly).Next
	}
	return daily, monthly
}
