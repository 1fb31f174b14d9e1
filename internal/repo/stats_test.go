package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-mentor-backend/internal/domain"
)

func TestThreadsStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	_, _, err := ThreadsStats(context.Background(), db, "t1", "u1")
	if err == nil {
		t.Fatalf("expected error due to missing threads table")
	}
}

func TestThreadsStats_ZeroRows(t *testing.T) {
	db := newMigratedDB(t)
	count, maxAt, err := ThreadsStats(context.Background(), db, "t1", "u1")
	if err != nil {
		t.Fatalf("ThreadsStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestThreadsStats_Success_FilterAndMax(t *testing.T) {
	db := newMigratedDB(t)

	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) // max for u1
	t3 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)   // other user, newer

	for _, th := range []domain.Thread{
		{ID: "a", TenantID: "t1", UserID: "u1", LessonID: "l1", MentorLessonID: "ml1", Status: domain.ThreadActive, CreatedAt: t1, UpdatedAt: t1},
		{ID: "b", TenantID: "t1", UserID: "u1", LessonID: "l1", MentorLessonID: "ml1", Status: domain.ThreadActive, CreatedAt: t2, UpdatedAt: t2},
		{ID: "c", TenantID: "t1", UserID: "u2", LessonID: "l1", MentorLessonID: "ml1", Status: domain.ThreadActive, CreatedAt: t3, UpdatedAt: t3},
	} {
		th := th
		if err := db.Create(&th).Error; err != nil {
			t.Fatalf("seed %s: %v", th.ID, err)
		}
	}

	count, maxAt, err := ThreadsStats(context.Background(), db, "t1", "u1")
	if err != nil {
		t.Fatalf("ThreadsStats error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("expected latest %v, got %v", t2, maxAt)
	}
}

// Force the second query to fail by renaming the column.
func TestThreadsStats_SelectLatest_ErrorPath(t *testing.T) {
	db := newMigratedDB(t)
	seedThread(t, db, "th-err", "uerr", time.Now().UTC())

	if err := db.Exec(`ALTER TABLE threads RENAME COLUMN updated_at TO updated_at_old`).Error; err != nil {
		t.Fatalf("rename column: %v", err)
	}

	_, _, err := ThreadsStats(context.Background(), db, "t1", "uerr")
	if err == nil {
		t.Fatalf("expected error from latest select after column rename")
	}
}

func TestMessagesStats_Success_FilterAndMax(t *testing.T) {
	db := newMigratedDB(t)
	seedThread(t, db, "tx", "u1", time.Now().UTC())
	seedThread(t, db, "ty", "u1", time.Now().UTC())

	t1 := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 4, 1, 12, 5, 0, 0, time.UTC) // max for tx
	t3 := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)  // other thread

	msgs := []domain.Message{
		{ID: "m1", ThreadID: "tx", Seq: 1, Role: domain.RoleUser, Content: "hi", CreatedAt: t1},
		{ID: "m2", ThreadID: "tx", Seq: 2, Role: domain.RoleAssistant, Content: "hey", CreatedAt: t2},
		{ID: "m3", ThreadID: "ty", Seq: 1, Role: domain.RoleUser, Content: "yo", CreatedAt: t3},
	}
	if err := db.Create(&msgs).Error; err != nil {
		t.Fatalf("seed messages: %v", err)
	}

	count, maxAt, err := MessagesStats(context.Background(), db, "tx")
	if err != nil {
		t.Fatalf("MessagesStats error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("expected latest %v, got %v", t2, maxAt)
	}

	count, maxAt, err = MessagesStats(context.Background(), db, "none")
	if err != nil || count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil, nil), got (%d, %v, %v)", count, maxAt, err)
	}
}

func TestDocumentsStats_TracksStatusChanges(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()

	d := &domain.Document{MentorLessonID: "ml1", LessonID: "l1", UploadedBy: "a", Name: "a.txt", Type: "text/plain", Size: 1, StorageKey: "k"}
	if err := CreateDocument(ctx, db, d); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	_, before, err := DocumentsStats(ctx, db, "ml1")
	if err != nil || before == nil {
		t.Fatalf("DocumentsStats: %v %v", before, err)
	}

	time.Sleep(5 * time.Millisecond)
	if err := FinishDocument(ctx, db, d.ID, domain.DocumentReady, ""); err != nil {
		t.Fatalf("FinishDocument: %v", err)
	}
	count, after, err := DocumentsStats(ctx, db, "ml1")
	if err != nil || count != 1 {
		t.Fatalf("DocumentsStats: %d %v", count, err)
	}
	if !after.After(*before) {
		t.Fatalf("expected latest to advance: before=%v after=%v", before, after)
	}
}
