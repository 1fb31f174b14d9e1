// Package scheduler runs periodic maintenance jobs with robfig/cron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Scheduler owns a cron instance. A job that is still running when its
// next tick fires is skipped for that tick.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New returns a scheduler. Each run gets at most timeout, 0 for none.
func New(log zerolog.Logger, timeout time.Duration) *Scheduler {
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:     log,
		timeout: timeout,
		entries: make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers fn under name. spec is a standard five-field expression or
// a descriptor such as "@every 5s".
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", name, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.entries[name] = id
	return nil
}

// RunNow executes the named job synchronously, outside the schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	s.cron.Entry(id).WrappedJob.Run()
	return nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.log.Info().Int("jobs", len(s.entries)).Msg("scheduler started")
}

// Stop cancels in-flight runs and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	s.cancel()
	if !wasRunning {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return errors.New("scheduler: timed out waiting for running jobs")
	}
}

func (s *Scheduler) run(name string, fn JobFunc) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.log.Error().Err(err).Str("job", name).Dur("took", time.Since(start)).Msg("scheduled job failed")
		return
	}
	s.log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("scheduled job done")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
