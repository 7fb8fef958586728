// Package scheduler runs the engine's background jobs on cron schedules.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]Job
	log  zerolog.Logger
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		jobs: make(map[string]Job),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule.
// Schedule examples:
//   - "30 17 * * MON-FRI"  - 17:30 weekdays
//   - "@hourly"            - Every hour
//   - "@every 6h"          - Every six hours
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.runJob(job)
	})
	if err != nil {
		return err
	}

	s.jobs[job.Name()] = job
	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")
	return nil
}

// RunNow executes a registered job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) (bool, error) {
	job, ok := s.jobs[name]
	if !ok {
		return false, nil
	}
	s.log.Info().Str("job", name).Msg("Running job immediately")
	return true, job.Run()
}

// JobNames returns the registered job names.
func (s *Scheduler) JobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) runJob(job Job) {
	start := time.Now()
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	if err := job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration_ms", time.Since(start)).
			Msg("Job failed")
		return
	}
	s.log.Debug().
		Str("job", job.Name()).
		Dur("duration_ms", time.Since(start)).
		Msg("Job completed")
}
