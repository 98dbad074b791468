// Package scheduler implements background job scheduling for the learning
// hub worker. Its single permanent resident is the reconciliation job that
// finishes crediting completions left half-applied by a crash or outage.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrNilJob                  = errors.New("scheduler: job cannot be nil")
	ErrNilSchedule             = errors.New("scheduler: schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("scheduler: job already registered")
	ErrSchedulerAlreadyRunning = errors.New("scheduler: already running")
	ErrSchedulerNotRunning     = errors.New("scheduler: not running")
)

// Job is a unit of scheduled work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled when the
	// scheduler is stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule decides when a job runs again.
type Schedule interface {
	// Next returns the first run time after t.
	Next(t time.Time) time.Time

	// String returns a human-readable representation of the schedule.
	String() string
}

// IntervalSchedule runs a job at a fixed period.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates an IntervalSchedule. Intervals below one
// second are raised to one second so a misconfigured env var cannot
// turn the worker into a busy loop.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	if interval < time.Second {
		interval = time.Second
	}
	return &IntervalSchedule{Interval: interval}
}

func (s *IntervalSchedule) Next(t time.Time) time.Time { return t.Add(s.Interval) }

func (s *IntervalSchedule) String() string { return fmt.Sprintf("@every %s", s.Interval) }

// entry pairs a job with its schedule and run bookkeeping.
type entry struct {
	job      Job
	schedule Schedule
	nextRun  time.Time
	runs     int64
	failures int64
}

// Scheduler drives registered jobs. It sleeps until the earliest
// nextRun instead of polling.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger, entries: make(map[string]*entry)}
}

// Register adds a job. Registration after Start is allowed; the job is
// picked up on the next wakeup.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	s.entries[name] = &entry{
		job:      job,
		schedule: schedule,
		nextRun:  schedule.Next(time.Now().UTC()),
	}

	s.logger.Info("job registered",
		"job", name,
		"description", job.Description(),
		"schedule", schedule.String(),
	)
	return nil
}

// Start launches the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	jobCount := len(s.entries)
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs_count", jobCount)

	s.wg.Add(1)
	go s.loop(loopCtx)
	return nil
}

// Stop cancels the loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// maxSleep bounds the wakeup interval so newly registered jobs are
// noticed within a reasonable time even when nothing else is due.
const maxSleep = 30 * time.Second

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		now := time.Now().UTC()
		due := s.collectDue(now)
		for _, e := range due {
			s.wg.Add(1)
			go s.runOne(ctx, e)
		}
		timer.Reset(s.sleepUntilNext(now))
	}
}

// collectDue advances nextRun for every due entry and returns them.
func (s *Scheduler) collectDue(now time.Time) []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*entry
	for _, e := range s.entries {
		if !now.Before(e.nextRun) {
			e.nextRun = e.schedule.Next(now)
			due = append(due, e)
		}
	}
	return due
}

func (s *Scheduler) sleepUntilNext(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	sleep := maxSleep
	for _, e := range s.entries {
		if d := e.nextRun.Sub(now); d < sleep {
			sleep = d
		}
	}
	if sleep < 0 {
		sleep = 0
	}
	return sleep
}

func (s *Scheduler) runOne(ctx context.Context, e *entry) {
	defer s.wg.Done()

	name := e.job.Name()
	start := time.Now()
	s.logger.Info("job started", "job", name)

	err := e.job.Run(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	e.runs++
	if err != nil {
		e.failures++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", name, "duration", elapsed, "error", err)
		return
	}
	s.logger.Info("job completed", "job", name, "duration", elapsed)
}
