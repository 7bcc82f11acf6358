package maintenance

import (
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
)

// SyncInterval is the minimum number of days between telemetry syncs.
const SyncInterval = 14

func day(t time.Time) time.Time {
	y, m, d := t.In(time.Local).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// SyncDue reports whether a sync last run at last is due at now. Whole
// calendar days count, so a sync exactly SyncInterval days old is due.
func SyncDue(last, now time.Time) bool {
	return !day(last).AddDate(0, 0, SyncInterval).After(day(now))
}

// Scheduler runs one maintenance job on a cron schedule.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	logger *log.Logger
}

// NewScheduler creates an idle Scheduler.
func NewScheduler(logger *log.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Start schedules fn on spec. Calling Start again replaces the job.
func (s *Scheduler) Start(spec string, fn func()) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.run(fn) }); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	old := s.cron
	s.cron = c
	s.mu.Unlock()

	if old != nil {
		<-old.Stop().Done()
	}
	c.Start()
	s.logger.Info().Str("component", "maintenance").Str("schedule", spec).Msg("maintenance scheduled")
	return nil
}

// Active reports whether a schedule is armed.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Stop cancels the schedule and waits for a running job to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Scheduler) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("component", "maintenance").Str("panic", fmt.Sprint(r)).Msg("maintenance job panicked")
		}
	}()
	fn()
}
