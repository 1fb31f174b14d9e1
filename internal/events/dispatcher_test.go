package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := db.AutoMigrate(&domain.Event{}, &domain.ActivityLog{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestDispatchPending_MarksDispatchedAndProjectsActivity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ev, err := repo.AppendEvent(ctx, db, domain.EventThreadCreated, "th1", map[string]string{"userId": "u1"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	d := NewDispatcher(db, zerolog.Nop())
	d.Handle(AnyType, ActivityLogHandler(db, zerolog.Nop()))

	n, err := d.DispatchPending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("DispatchPending = %d, %v", n, err)
	}

	acts, err := repo.ListActivity(ctx, db, "th1")
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(acts) != 1 || acts[0].EventID != ev.ID || acts[0].ActorID != "u1" {
		t.Fatalf("unexpected activity: %+v", acts)
	}
	if acts[0].Subject != "thread th1 started" {
		t.Fatalf("subject = %q", acts[0].Subject)
	}

	if n, _ := d.DispatchPending(ctx); n != 0 {
		t.Fatalf("expected nothing pending, dispatched %d", n)
	}
}

func TestDispatchPending_FailureIncrementsAttempts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ev, _ := repo.AppendEvent(ctx, db, domain.EventDocumentFailed, "d1", map[string]string{"uploadedBy": "a1", "reason": "extract: bad"})

	calls := 0
	d := NewDispatcher(db, zerolog.Nop())
	d.MaxAttempts = 2
	d.Handle(domain.EventDocumentFailed, func(context.Context, domain.Event) error {
		calls++
		return errors.New("downstream unavailable")
	})

	for i := 0; i < 3; i++ {
		if _, err := d.DispatchPending(ctx); err != nil {
			t.Fatalf("DispatchPending: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected delivery to stop after max attempts, got %d calls", calls)
	}

	var got domain.Event
	if err := db.First(&got, "id = ?", ev.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Attempts != 2 || got.DispatchedAt != nil || got.LastError != "downstream unavailable" {
		t.Fatalf("unexpected event state: %+v", got)
	}
}

func TestActivityLogHandler_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ev, _ := repo.AppendEvent(ctx, db, domain.EventDocumentFailed, "d1", map[string]string{"uploadedBy": "a1", "reason": "extract: bad"})

	h := ActivityLogHandler(db, zerolog.Nop())
	for i := 0; i < 2; i++ {
		if err := h(ctx, *ev); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}
	acts, _ := repo.ListActivity(ctx, db, "d1")
	if len(acts) != 1 {
		t.Fatalf("expected one activity row, got %d", len(acts))
	}
	if acts[0].ActorID != "a1" || acts[0].Subject != "document d1 failed: extract: bad" {
		t.Fatalf("unexpected activity: %+v", acts[0])
	}
}

func TestActivityLogHandler_BadPayload(t *testing.T) {
	db := newTestDB(t)
	h := ActivityLogHandler(db, zerolog.Nop())
	err := h(context.Background(), domain.Event{ID: "e1", Type: "x", AggregateID: "a", Payload: []byte("{")})
	if err == nil {
		t.Fatalf("expected decode error")
	}
}
