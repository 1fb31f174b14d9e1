// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-backend/internal/domain"
)

// ThreadsStats returns the number of threads owned by (tenantID, userID) and
// the greatest UpdatedAt among them. When the user has no threads the count
// is 0 and latest is nil.
func ThreadsStats(ctx context.Context, db *gorm.DB, tenantID, userID string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Thread{}).Where("tenant_id = ? AND user_id = ?", tenantID, userID)
	return countAndLatest(q, "updated_at")
}

// MessagesStats returns the number of messages in a thread and the newest
// CreatedAt. Messages are append-only so creation time is the change marker.
func MessagesStats(ctx context.Context, db *gorm.DB, threadID string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("thread_id = ?", threadID)
	return countAndLatest(q, "created_at")
}

// DocumentsStats returns the number of documents of a mentor lesson and the
// greatest UpdatedAt; status changes bump UpdatedAt.
func DocumentsStats(ctx context.Context, db *gorm.DB, mentorLessonID string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Document{}).Where("mentor_lesson_id = ?", mentorLessonID)
	return countAndLatest(q, "updated_at")
}

func countAndLatest(q *gorm.DB, column string) (int64, *time.Time, error) {
	var count int64
	if err := q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest timestamp (avoid MAX() -> TEXT in SQLite)
	var row struct {
		At time.Time
	}
	if err := q.Session(&gorm.Session{}).Select(column + " AS at").Order(column + " DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.At, nil
}

// Stats binds the statistics queries to a database handle for callers that
// take them as an interface.
type Stats struct {
	DB *gorm.DB
}

// Threads is ThreadsStats on s.DB.
func (s Stats) Threads(ctx context.Context, tenantID, userID string) (int64, *time.Time, error) {
	return ThreadsStats(ctx, s.DB, tenantID, userID)
}

// Messages is MessagesStats on s.DB.
func (s Stats) Messages(ctx context.Context, threadID string) (int64, *time.Time, error) {
	return MessagesStats(ctx, s.DB, threadID)
}

// Documents is DocumentsStats on s.DB.
func (s Stats) Documents(ctx context.Context, mentorLessonID string) (int64, *time.Time, error) {
	return DocumentsStats(ctx, s.DB, mentorLessonID)
}
