package repo

import (
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-mentor-backend/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
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
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func newMigratedDB(t *testing.T) *gorm.DB {
	t.Helper()
	return newTestDB(t, Models()...)
}

func seedMentor(t *testing.T, db *gorm.DB, tenantID, authorID, courseID, lessonID, mentorLessonID string, typ domain.MentorType) {
	t.Helper()
	rows := []any{
		&domain.Course{ID: courseID, TenantID: tenantID, AuthorID: authorID, Title: "course"},
		&domain.Lesson{ID: lessonID, CourseID: courseID, Title: "lesson"},
		&domain.MentorLesson{ID: mentorLessonID, LessonID: lessonID, Name: "mentor", Type: typ, CompletionConditions: "explain goroutines"},
	}
	for _, r := range rows {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed %T: %v", r, err)
		}
	}
}

func seedThread(t *testing.T, db *gorm.DB, id, userID string, lastActivity time.Time) *domain.Thread {
	t.Helper()
	th := &domain.Thread{
		ID: id, TenantID: "t1", UserID: userID, LessonID: "l1", MentorLessonID: "ml1",
		Status: domain.ThreadActive, UserLanguage: "en", LastActivityAt: lastActivity,
	}
	if err := db.Create(th).Error; err != nil {
		t.Fatalf("seed thread: %v", err)
	}
	return th
}
