package rollover

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/telemetry/logging"
)

type countingResetter struct {
	mu      sync.Mutex
	daily   int
	monthly int
}

func (c *countingResetter) ResetDailyCosts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.daily++
}

func (c *countingResetter) ResetMonthlyCosts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.monthly++
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		daily       string
		monthly     string
		wantRunning bool
		wantError   bool
	}{
		{
			name:        "default schedules",
			daily:       "0 0 * * *",
			monthly:     "0 0 1 * *",
			wantRunning: true,
		},
		{
			name:        "daily only",
			daily:       "30 2 * * *",
			wantRunning: true,
		},
		{
			name:        "no schedules - no error, not running",
			wantRunning: false,
		},
		{
			name:      "invalid daily schedule",
			daily:     "every day",
			monthly:   "0 0 1 * *",
			wantError: true,
		},
		{
			name:      "invalid monthly schedule",
			daily:     "0 0 * * *",
			monthly:   "0 0 32 * *",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(&countingResetter{}, Config{DailySchedule: tt.daily, MonthlySchedule: tt.monthly}, logging.Discard())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}

			daily, monthly := s.NextRuns()
			if tt.wantRunning {
				if daily.IsZero() || !daily.After(time.Now()) {
					t.Errorf("daily NextRun = %v", daily)
				}
				if (tt.monthly != "") != !monthly.IsZero() {
					t.Errorf("monthly NextRun = %v", monthly)
				}
			}
			s.Stop()
		})
	}
}

func TestScheduler_NextRunsFollowSchedule(t *testing.T) {
	s := NewScheduler(&countingResetter{}, Config{DailySchedule: "0 0 * * *", MonthlySchedule: "0 0 1 * *"}, logging.Discard())
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	daily, monthly := s.NextRuns()
	daily, monthly = daily.UTC(), monthly.UTC()
	if daily.Hour() != 0 || daily.Minute() != 0 {
		t.Errorf("daily NextRun = %v, want midnight", daily)
	}
	if monthly.Day() != 1 || monthly.Hour() != 0 {
		t.Errorf("monthly NextRun = %v, want the 1st at midnight", monthly)
	}
	if daily.After(monthly) {
		t.Errorf("daily reset %v should come no later than monthly reset %v", daily, monthly)
	}
}

func TestScheduler_Jobs(t *testing.T) {
	r := &countingResetter{}
	s := NewScheduler(r, Config{}, logging.Discard())

	s.resetDaily()
	s.resetDaily()
	s.resetMonthly()

	if r.daily != 2 || r.monthly != 1 {
		t.Errorf("resets = %d daily, %d monthly", r.daily, r.monthly)
	}
}

func TestScheduler_StopOnContextCancel(t *testing.T) {
	s := NewScheduler(&countingResetter{}, Config{DailySchedule: "0 0 * * *"}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("expected error on second Start")
	}

	cancel()
	deadline := time.Now().Add(time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("scheduler still running after context cancel")
	}
}
