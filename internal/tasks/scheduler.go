package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vikify/resolver/internal/shared"
)

const (
	DefaultBackoffBase = 30 * time.Second
	DefaultBackoffMax  = 5 * time.Hour
)

// Result is what a [Job] asks the scheduler to do next.
type Result int

const (
	ResultSuccess Result = iota
	ResultFailure
	// ResultRetry re-runs the job after exponential backoff.
	ResultRetry
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	case ResultRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// Job is a unit of named background work. ctx is cancelled by [Scheduler.Cancel].
type Job func(ctx context.Context) Result

// ExistingWorkPolicy decides what Enqueue does when work with the same name exists.
type ExistingWorkPolicy int

const (
	// Keep leaves queued work alone. A running job gets at most one follow-up run.
	Keep ExistingWorkPolicy = iota
	// Replace cancels existing work and runs the new job once it has stopped.
	Replace
)

// WorkState is the observable state of a named unit of work.
type WorkState int

const (
	StateIdle WorkState = iota
	StateRunning
	StateEnqueued
)

func (s WorkState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateEnqueued:
		return "enqueued"
	default:
		return "idle"
	}
}

type work struct {
	running  bool
	cancel   context.CancelFunc
	pending  Job
	timer    *time.Timer
	attempts int
}

// Scheduler runs unique named jobs, one run per name at a time.
type Scheduler struct {
	mu     sync.Mutex
	works  map[string]*work
	wg     sync.WaitGroup
	base   time.Duration
	max    time.Duration
	logger *log.Logger
}

// SchedulerOption configures a [Scheduler].
type SchedulerOption func(*Scheduler)

// WithBackoff sets the retry delay after the first ResultRetry and its cap.
func WithBackoff(base, limit time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.base = base
		s.max = limit
	}
}

// WithSchedulerLogger sets the scheduler's logger.
func WithSchedulerLogger(l *log.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates an idle scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		works:  make(map[string]*work),
		base:   DefaultBackoffBase,
		max:    DefaultBackoffMax,
		logger: shared.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue submits job under name and reports whether it was accepted.
func (s *Scheduler) Enqueue(name string, job Job, policy ExistingWorkPolicy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.works[name]
	if !ok {
		w = &work{}
		s.works[name] = w
		s.start(name, w, job)
		return true
	}

	if policy == Replace {
		s.stopTimer(w)
		w.attempts = 0
		if w.running {
			w.pending = job
			w.cancel()
		} else {
			s.start(name, w, job)
		}
		s.logger.Debug("work replaced", "name", name)
		return true
	}

	if w.pending != nil || w.timer != nil {
		s.logger.Debug("work already enqueued, dropping", "name", name)
		return false
	}
	w.pending = job
	s.logger.Debug("follow-up run queued", "name", name)
	return true
}

// Cancel stops the running job under name and drops anything queued behind it.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.works[name]
	if !ok {
		return false
	}
	w.pending = nil
	s.stopTimer(w)
	if w.running {
		w.cancel()
	} else {
		delete(s.works, name)
	}
	s.logger.Info("work cancelled", "name", name)
	return true
}

// State reports what the scheduler is doing with name.
func (s *Scheduler) State(name string) WorkState {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.works[name]
	switch {
	case !ok:
		return StateIdle
	case w.running:
		return StateRunning
	default:
		return StateEnqueued
	}
}

// Wait blocks until no job is running, queued or waiting out a backoff.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Backoff is the delay before retry number attempt (1-based): base doubled per attempt, capped at max.
func (s *Scheduler) Backoff(attempt int) time.Duration {
	d := s.base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.max {
			return s.max
		}
	}
	return min(d, s.max)
}

// start runs job under name. Caller holds s.mu.
func (s *Scheduler) start(name string, w *work, job Job) {
	ctx, cancel := context.WithCancel(context.Background())
	w.running = true
	w.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx, name, w, job)
}

func (s *Scheduler) run(ctx context.Context, name string, w *work, job Job) {
	defer s.wg.Done()
	res := job(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := ctx.Err() != nil
	w.cancel()
	w.running = false
	w.cancel = nil
	s.logger.Debug("work finished", "name", name, "result", res, "cancelled", cancelled)

	switch {
	case w.pending != nil:
		next := w.pending
		w.pending = nil
		w.attempts = 0
		s.start(name, w, next)
	case res == ResultRetry && !cancelled:
		w.attempts++
		delay := s.Backoff(w.attempts)
		s.logger.Warn("work will be retried", "name", name, "attempt", w.attempts, "delay", delay)
		s.wg.Add(1)
		w.timer = time.AfterFunc(delay, func() { s.fire(name, w, job) })
	default:
		delete(s.works, name)
	}
}

func (s *Scheduler) fire(name string, w *work, job Job) {
	defer s.wg.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.works[name] != w || w.timer == nil {
		return
	}
	w.timer = nil
	s.start(name, w, job)
}

// stopTimer cancels a pending retry. Caller holds s.mu.
func (s *Scheduler) stopTimer(w *work) {
	if w.timer == nil {
		return
	}
	if w.timer.Stop() {
		s.wg.Done()
	}
	w.timer = nil
}
