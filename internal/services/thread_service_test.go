package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-mentor-backend/internal/authz"
	"github.com/tbourn/go-mentor-backend/internal/domain"
)

func TestThreadService_Create_UnknownMentorLesson(t *testing.T) {
	db := newSvcDB(t)
	svc := &ThreadService{DB: db, Authz: allowAll{allow: true}}

	_, err := svc.Create(context.Background(), CreateThreadInput{
		MentorLessonID: "missing", UserID: "u1", TenantID: "t1",
	}, "student")
	if !errors.Is(err, ErrLessonNotFound) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrLessonNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing") || !strings.Contains(err.Error(), `"student"`) {
		t.Fatalf("error should name the mentor lesson and role: %v", err)
	}
	if n := countRows(t, db, &domain.Thread{}, ""); n != 0 {
		t.Fatalf("threads = %d, want 0", n)
	}
}

func TestThreadService_Create_OK(t *testing.T) {
	db := newSvcDB(t)
	f := seedLesson(t, db, "t1", "author", domain.MentorTypeTeacher)
	svc := &ThreadService{DB: db, Authz: allowAll{allow: true}}

	env, err := svc.Create(context.Background(), CreateThreadInput{
		MentorLessonID: f.MentorLessonID, UserID: "u1", TenantID: "t1", UserLanguage: "pt-br",
	}, "student")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	th := env.Data
	if th == nil || th.ID == "" {
		t.Fatalf("envelope has no thread: %+v", env)
	}
	if th.Status != domain.ThreadActive || th.LessonID != f.LessonID || th.MentorLessonID != f.MentorLessonID {
		t.Fatalf("unexpected thread: %+v", th)
	}
	if th.UserLanguage != "pt-BR" {
		t.Fatalf("language = %q, want pt-BR", th.UserLanguage)
	}
	if n := countRows(t, db, &domain.Thread{}, ""); n != 1 {
		t.Fatalf("threads = %d, want 1", n)
	}
	if n := countRows(t, db, &domain.Event{}, "type = ? AND aggregate_id = ?", domain.EventThreadCreated, th.ID); n != 1 {
		t.Fatalf("thread.created events = %d, want 1", n)
	}
}

func TestThreadService_Create_MissingIdentity(t *testing.T) {
	db := newSvcDB(t)
	svc := &ThreadService{DB: db}
	_, err := svc.Create(context.Background(), CreateThreadInput{MentorLessonID: "x", TenantID: "t1"}, "")
	if !errors.Is(err, ErrMissingIdentity) {
		t.Fatalf("want ErrMissingIdentity, got %v", err)
	}
}

func TestThreadService_Create_Denied(t *testing.T) {
	db := newSvcDB(t)
	f := seedLesson(t, db, "t1", "author", domain.MentorTypeMentor)
	svc := &ThreadService{DB: db, Authz: allowAll{allow: false}}

	_, err := svc.Create(context.Background(), CreateThreadInput{
		MentorLessonID: f.MentorLessonID, UserID: "u1", TenantID: "t1",
	}, "student")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
	if n := countRows(t, db, &domain.Thread{}, ""); n != 0 {
		t.Fatalf("threads = %d, want 0", n)
	}
}

func TestThreadService_Create_EnforcedTenant(t *testing.T) {
	db := newSvcDB(t)
	f := seedLesson(t, db, "t1", "author", domain.MentorTypeMentor)
	opa, err := authz.NewOPA(context.Background(), authz.Options{EnforceLessonAccess: true})
	if err != nil {
		t.Fatalf("NewOPA: %v", err)
	}
	svc := &ThreadService{DB: db, Authz: opa}

	if _, err := svc.Create(context.Background(), CreateThreadInput{
		MentorLessonID: f.MentorLessonID, UserID: "u1", TenantID: "other",
	}, "student"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cross-tenant create: want ErrForbidden, got %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateThreadInput{
		MentorLessonID: f.MentorLessonID, UserID: "u1", TenantID: "t1",
	}, "student"); err != nil {
		t.Fatalf("same-tenant create: %v", err)
	}
}

func TestThreadService_GetAndList_Scoped(t *testing.T) {
	db := newSvcDB(t)
	f := seedLesson(t, db, "t1", "author", domain.MentorTypeMentor)
	mine := seedThread(t, db, f, "t1", "u1")
	seedThread(t, db, f, "t1", "u1")
	seedThread(t, db, f, "t1", "u2")
	svc := &ThreadService{DB: db}
	ctx := context.Background()

	if _, err := svc.Get(ctx, "t1", "u2", mine.ID); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("foreign Get: want ErrThreadNotFound, got %v", err)
	}
	got, err := svc.Get(ctx, "t1", "u1", mine.ID)
	if err != nil || got.ID != mine.ID {
		t.Fatalf("Get: %v %+v", err, got)
	}

	items, total, err := svc.ListPage(ctx, "t1", "u1", 1, 1)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 2 || len(items) != 1 {
		t.Fatalf("total=%d len=%d, want 2/1", total, len(items))
	}
	items, total, err = svc.ListPage(ctx, "t9", "nobody", 1, 10)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty ListPage: %v total=%d len=%d", err, total, len(items))
	}
}

func TestThreadService_Abandon(t *testing.T) {
	db := newSvcDB(t)
	f := seedLesson(t, db, "t1", "author", domain.MentorTypeMentor)
	th := seedThread(t, db, f, "t1", "u1")
	svc := &ThreadService{DB: db}
	ctx := context.Background()

	if _, err := svc.Abandon(ctx, "t1", "u2", th.ID); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("foreign abandon: want ErrThreadNotFound, got %v", err)
	}
	got, err := svc.Abandon(ctx, "t1", "u1", th.ID)
	if err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if got.Status != domain.ThreadAbandoned {
		t.Fatalf("status = %s", got.Status)
	}
	if _, err := svc.Abandon(ctx, "t1", "u1", th.ID); !errors.Is(err, ErrThreadNotActive) || !errors.Is(err, ErrConflict) {
		t.Fatalf("second abandon: want ErrThreadNotActive, got %v", err)
	}
	if n := countRows(t, db, &domain.Event{}, "type = ?", domain.EventThreadAbandoned); n != 1 {
		t.Fatalf("abandoned events = %d, want 1", n)
	}
}

func TestThreadService_Complete(t *testing.T) {
	db := newSvcDB(t)
	f := seedLesson(t, db, "t1", "author", domain.MentorTypeMentor)
	th := seedThread(t, db, f, "t1", "u1")
	svc := &ThreadService{DB: db}
	ctx := context.Background()

	if err := svc.Complete(ctx, th.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, err := svc.Get(ctx, "t1", "u1", th.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.ThreadCompleted || got.CompletedAt == nil {
		t.Fatalf("want completed with timestamp, got %+v", got)
	}
	if err := svc.Complete(ctx, th.ID); !errors.Is(err, ErrThreadNotActive) {
		t.Fatalf("complete twice: want ErrThreadNotActive, got %v", err)
	}
	if err := svc.Complete(ctx, "nope"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("complete missing: want ErrThreadNotFound, got %v", err)
	}
}

func TestThreadService_AbandonIdle(t *testing.T) {
	db := newSvcDB(t)
	f := seedLesson(t, db, "t1", "author", domain.MentorTypeMentor)
	idle := seedThread(t, db, f, "t1", "u1")
	fresh := seedThread(t, db, f, "t1", "u1")
	done := seedThread(t, db, f, "t1", "u1")

	old := time.Now().UTC().Add(-48 * time.Hour)
	for _, id := range []string{idle.ID, done.ID} {
		if err := db.Model(&domain.Thread{}).Where("id = ?", id).Update("last_activity_at", old).Error; err != nil {
			t.Fatalf("age thread: %v", err)
		}
	}
	svc := &ThreadService{DB: db}
	if err := svc.Complete(context.Background(), done.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	n, err := svc.AbandonIdle(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("AbandonIdle: %v", err)
	}
	if n != 1 {
		t.Fatalf("abandoned = %d, want 1", n)
	}
	want := map[string]domain.ThreadStatus{
		idle.ID:  domain.ThreadAbandoned,
		fresh.ID: domain.ThreadActive,
		done.ID:  domain.ThreadCompleted,
	}
	for id, st := range want {
		var th domain.Thread
		if err := db.First(&th, "id = ?", id).Error; err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		if th.Status != st {
			t.Errorf("thread %s status = %s, want %s", id, th.Status, st)
		}
	}
}

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{
		"":          "und",
		"  ":        "und",
		"en":        "en",
		"pt-br":     "pt-BR",
		"not a tag": "und",
	}
	for in, want := range cases {
		if got := normalizeLanguage(in); got != want {
			t.Errorf("normalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
