package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Refresher re-issues the current weather query.
type Refresher interface {
	Refresh()
}

// Scheduler periodically refreshes the widget's current query.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
}

// New creates a new Scheduler. An interval <= 0 disables refreshing.
func New(interval time.Duration, refresher Refresher) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		interval:  interval,
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
// The first run happens one interval after Start.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		log.Println("scheduler: refresh interval not set; auto-refresh disabled")
		return nil
	}
	if s.interval < time.Second {
		s.interval = time.Second
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(func() {
		log.Println("scheduler: refreshing current weather query")
		s.refresher.Refresh()
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Running reports whether the refresh job is active.
func (s *Scheduler) Running() bool {
	return s.scheduler.IsRunning()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
