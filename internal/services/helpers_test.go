package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-mentor-backend/internal/authz"
	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/llm"
	"github.com/tbourn/go-mentor-backend/internal/repo"
	"github.com/tbourn/go-mentor-backend/internal/storage"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fixture struct {
	CourseID, LessonID, MentorLessonID string
}

// seedLesson creates a course authored by authorID in tenantID with one
// lesson and its mentor configuration.
func seedLesson(t *testing.T, db *gorm.DB, tenantID, authorID string, typ domain.MentorType) fixture {
	t.Helper()
	f := fixture{CourseID: uuid.NewString(), LessonID: uuid.NewString(), MentorLessonID: uuid.NewString()}
	rows := []any{
		&domain.Course{ID: f.CourseID, TenantID: tenantID, AuthorID: authorID, Title: "Go basics"},
		&domain.Lesson{ID: f.LessonID, CourseID: f.CourseID, Title: "Goroutines"},
		&domain.MentorLesson{
			ID: f.MentorLessonID, LessonID: f.LessonID, Name: "Gopher", Type: typ,
			Instructions: "Guide the learner.", CompletionConditions: "Learner explains what a goroutine is.",
		},
	}
	for _, r := range rows {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed %T: %v", r, err)
		}
	}
	return f
}

func seedThread(t *testing.T, db *gorm.DB, f fixture, tenantID, userID string) *domain.Thread {
	t.Helper()
	th := &domain.Thread{
		TenantID: tenantID, UserID: userID, LessonID: f.LessonID, MentorLessonID: f.MentorLessonID,
		UserLanguage: "en",
	}
	if err := repo.CreateThread(context.Background(), db, th); err != nil {
		t.Fatalf("seed thread: %v", err)
	}
	return th
}

func countRows(t *testing.T, db *gorm.DB, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

// ---------- fakes ----------

// fakeModel answers with fn and records every request.
type fakeModel struct {
	mu   sync.Mutex
	fn   func(req llm.ChatRequest) (*llm.ChatResponse, error)
	reqs []llm.ChatRequest
}

func (f *fakeModel) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.fn(req)
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func textModel(text string) *fakeModel {
	return &fakeModel{fn: func(llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Text: text}, nil
	}}
}

type allowAll struct{ allow bool }

func (a allowAll) Allow(context.Context, authz.Request) (bool, error) { return a.allow, nil }

type fakeQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *fakeQueue) Enqueue(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

type memStore struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func newMemStore() *memStore { return &memStore{objs: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[key] = data
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objs[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return b, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objs, key)
	return nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objs)
}

// upload builds an UploadFile whose Open records that it was called.
func upload(name, ct, body string, opened *int) UploadFile {
	return UploadFile{
		Name: name, ContentType: ct, Size: int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			*opened++
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}
