// Package scheduler runs the server's periodic housekeeping on cron
// schedules.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Schedule() string
	Execute(ctx context.Context) error
}

type funcJob struct {
	name     string
	schedule string
	fn       func(ctx context.Context) error
}

func (j funcJob) Name() string                      { return j.name }
func (j funcJob) Schedule() string                  { return j.schedule }
func (j funcJob) Execute(ctx context.Context) error { return j.fn(ctx) }

// NewJob wraps fn as a Job.
func NewJob(name, schedule string, fn func(ctx context.Context) error) Job {
	return funcJob{name: name, schedule: schedule, fn: fn}
}

type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	timeout time.Duration
}

// New evaluates schedules in loc. Each run gets timeout to finish.
func New(loc *time.Location, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		timeout: timeout,
	}
}

func (s *Scheduler) Register(job Job) error {
	_, err := s.cron.AddFunc(job.Schedule(), func() { s.run(context.Background(), job) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name(), job.Schedule(), err)
	}
	s.jobs = append(s.jobs, job)
	log.Printf("📅 [%s] Scheduled with cron: %s", job.Name(), job.Schedule())
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("🚀 Scheduler started with %d jobs", len(s.jobs))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("🛑 Scheduler stopped")
}

// RunByName runs a registered job once, outside its schedule.
func (s *Scheduler) RunByName(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name() == name {
			return s.run(ctx, job)
		}
	}
	return fmt.Errorf("job %q not registered", name)
}

func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.Name()
	}
	return names
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := job.Execute(ctx); err != nil {
		log.Printf("❌ [%s] Job failed: %v", job.Name(), err)
		return err
	}
	return nil
}
