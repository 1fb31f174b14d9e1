// Package events delivers outbox records to in-process handlers.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/repo"
)

// AnyType subscribes a handler to every event type.
const AnyType = "*"

var dispatchedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox events processed, by type and result.",
	},
	[]string{"type", "result"},
)

func init() {
	prometheus.MustRegister(dispatchedTotal)
}

// HandlerFunc reacts to one event. Handlers may see the same event more
// than once and must tolerate it.
type HandlerFunc func(ctx context.Context, ev domain.Event) error

// Dispatcher polls the outbox and runs handlers. An event is marked
// dispatched only after all of its handlers succeed.
type Dispatcher struct {
	DB          *gorm.DB
	Log         zerolog.Logger
	BatchSize   int
	MaxAttempts int

	mu       sync.Mutex
	handlers map[string][]HandlerFunc
	running  sync.Mutex
}

// NewDispatcher returns a dispatcher with default batch size and attempts.
func NewDispatcher(db *gorm.DB, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{DB: db, Log: log, BatchSize: 100, MaxAttempts: 10}
}

// Handle registers h for events of typ, or AnyType.
func (d *Dispatcher) Handle(typ string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = make(map[string][]HandlerFunc)
	}
	d.handlers[typ] = append(d.handlers[typ], h)
}

func (d *Dispatcher) handlersFor(typ string) []HandlerFunc {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]HandlerFunc, 0, len(d.handlers[typ])+len(d.handlers[AnyType]))
	out = append(out, d.handlers[AnyType]...)
	return append(out, d.handlers[typ]...)
}

// DispatchPending delivers one batch of pending events and returns how many
// were marked dispatched. Overlapping calls are serialized.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	d.running.Lock()
	defer d.running.Unlock()

	batch := d.BatchSize
	if batch <= 0 {
		batch = 100
	}
	evs, err := repo.ListPendingEvents(ctx, d.DB, batch, d.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("list pending events: %w", err)
	}

	sent := 0
	for _, ev := range evs {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := d.deliver(ctx, ev); err != nil {
			dispatchedTotal.WithLabelValues(ev.Type, "error").Inc()
			d.Log.Warn().Err(err).Str("event_id", ev.ID).Str("type", ev.Type).Int("attempt", ev.Attempts+1).Msg("event handler failed")
			if mErr := repo.MarkEventFailed(ctx, d.DB, ev.ID, err.Error()); mErr != nil {
				return sent, mErr
			}
			continue
		}
		if err := repo.MarkEventDispatched(ctx, d.DB, ev.ID, time.Now().UTC()); err != nil {
			return sent, err
		}
		dispatchedTotal.WithLabelValues(ev.Type, "ok").Inc()
		sent++
	}
	return sent, nil
}

func (d *Dispatcher) deliver(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, h := range d.handlersFor(ev.Type) {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
