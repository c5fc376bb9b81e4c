package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler manages periodic job execution using cron expressions.
// Each job is protected by a per-job mutex to prevent parallel execution
// of the same job (uses TryLock, atomic, no race).
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	jobs     []Job
	names    map[string]struct{}
	locks    map[string]*sync.Mutex
	entries  map[string]cron.EntryID
	location *time.Location
	logger   *slog.Logger
	cancel   context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation evaluates schedules in loc instead of UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewScheduler creates a scheduler. Jobs must be registered before Start().
func NewScheduler(logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		names:    make(map[string]struct{}),
		locks:    make(map[string]*sync.Mutex),
		entries:  make(map[string]cron.EntryID),
		location: time.UTC,
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// Returns an error if a job with the same name is already registered.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	s.names[name] = struct{}{}
	s.locks[name] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start initializes the cron scheduler and begins executing registered jobs.
// Returns an error if any job has an invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.cron = cron.New(cron.WithParser(parser), cron.WithLocation(s.location))

	for _, job := range s.jobs {
		id, err := s.cron.AddFunc(job.Schedule(), s.runner(ctx, job))
		if err != nil {
			cancel()
			s.cron = nil
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
		s.entries[job.Name()] = id
	}

	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs))
	return nil
}

func (s *Scheduler) runner(ctx context.Context, job Job) func() {
	lock := s.locks[job.Name()]
	return func() {
		// If the previous tick is still running, skip this one.
		if !lock.TryLock() {
			s.logger.Warn("cron: job still running, skipping tick", "job", job.Name())
			return
		}
		defer lock.Unlock()

		s.logger.Debug("cron: job started", "job", job.Name())
		if err := job.Run(ctx); err != nil {
			s.logger.Error("cron: job failed", "job", job.Name(), "error", err)
		} else {
			s.logger.Debug("cron: job completed", "job", job.Name())
		}
	}
}

// Entry describes a registered job and its next activation.
type Entry struct {
	Name     string
	Schedule string
	// Next is zero before Start.
	Next time.Time
}

// Entries lists registered jobs in registration order.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.jobs))
	for _, j := range s.jobs {
		e := Entry{Name: j.Name(), Schedule: j.Schedule()}
		if s.cron != nil {
			e.Next = s.cron.Entry(s.entries[j.Name()]).Next
		}
		out = append(out, e)
	}
	return out
}

// Stop gracefully shuts down the scheduler, waiting for in-flight jobs
// until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop().Done()
	s.cron = nil
	select {
	case <-done:
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: waiting for running jobs: %w", ctx.Err())
	}
}
