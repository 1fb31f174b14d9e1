// Package queue runs background jobs keyed by an ID on a fixed pool of
// workers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DocumentIngestion is the queue that feeds the ingestion pipeline.
const DocumentIngestion = "document-ingestion"

// ErrClosed is returned by Enqueue once the queue has stopped.
var ErrClosed = errors.New("queue closed")

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_total",
			Help: "Jobs handled, by queue and result.",
		},
		[]string{"queue", "result"},
	)
	depth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Jobs waiting for a worker.",
		},
		[]string{"queue"},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, depth)
}

// Handler processes one job. Errors are logged and counted; jobs are not
// retried.
type Handler func(ctx context.Context, id string) error

// Queue is a bounded in-process job queue. An ID that is already waiting is
// not queued twice.
type Queue struct {
	name    string
	workers int
	handle  Handler
	log     zerolog.Logger

	jobs chan string
	quit chan struct{}

	mu      sync.RWMutex
	closed  bool
	started bool
	g       *errgroup.Group
	cancel  context.CancelFunc

	pendingMu sync.Mutex
	pending   map[string]struct{}
}

// New builds a queue holding up to size waiting jobs.
func New(name string, size, workers int, h Handler, log zerolog.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		name:    name,
		workers: workers,
		handle:  h,
		log:     log.With().Str("queue", name).Logger(),
		jobs:    make(chan string, size),
		quit:    make(chan struct{}),
		pending: make(map[string]struct{}),
	}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Start launches the workers. They run until ctx is cancelled or Stop is
// called.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	q.g = g

	go func() {
		<-gctx.Done()
		close(q.quit)
	}()

	for w := 1; w <= q.workers; w++ {
		g.Go(func() error {
			q.work(gctx, w)
			return nil
		})
	}
	q.log.Info().Int("workers", q.workers).Msg("queue started")
}

// Enqueue adds id to the queue, blocking while it is full.
func (q *Queue) Enqueue(ctx context.Context, id string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	q.pendingMu.Lock()
	if _, dup := q.pending[id]; dup {
		q.pendingMu.Unlock()
		return nil
	}
	q.pending[id] = struct{}{}
	q.pendingMu.Unlock()

	select {
	case q.jobs <- id:
		depth.WithLabelValues(q.name).Inc()
		return nil
	case <-ctx.Done():
		q.forget(id)
		return ctx.Err()
	case <-q.quit:
		q.forget(id)
		return ErrClosed
	}
}

// Stop refuses new jobs, lets the workers drain what is queued and waits
// for them. Stop on a queue that never started only closes it.
func (q *Queue) Stop() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	g, started := q.g, q.started
	q.mu.Unlock()

	if !started {
		return nil
	}
	err := g.Wait()
	q.cancel()
	q.log.Info().Msg("queue stopped")
	return err
}

func (q *Queue) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-q.jobs:
			if !ok {
				return
			}
			depth.WithLabelValues(q.name).Dec()
			q.forget(id)
			q.run(ctx, worker, id)
		}
	}
}

func (q *Queue) run(ctx context.Context, worker int, id string) {
	log := q.log.With().Int("worker", worker).Str("job_id", id).Logger()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return q.handle(ctx, id)
	}()
	if err != nil {
		jobsTotal.WithLabelValues(q.name, "error").Inc()
		log.Error().Err(err).Msg("job failed")
		return
	}
	jobsTotal.WithLabelValues(q.name, "ok").Inc()
	log.Debug().Msg("job done")
}

func (q *Queue) forget(id string) {
	q.pendingMu.Lock()
	delete(q.pending, id)
	q.pendingMu.Unlock()
}
