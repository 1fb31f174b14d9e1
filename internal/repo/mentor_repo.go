// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file resolves the course structure a mentor lesson
// hangs off: mentor lesson -> lesson -> course.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// LessonOwner identifies who owns the lesson a mentor is attached to.
type LessonOwner struct {
	LessonID string
	CourseID string
	TenantID string
	AuthorID string
}

// GetMentorLesson fetches a mentor lesson by ID or returns ErrNotFound.
func GetMentorLesson(ctx context.Context, db *gorm.DB, id string) (*domain.MentorLesson, error) {
	var ml domain.MentorLesson
	if err := db.WithContext(ctx).Where("id = ?", id).First(&ml).Error; err != nil {
		return nil, err
	}
	return &ml, nil
}

// LessonIDForMentorLesson resolves the lesson bound to a mentor lesson.
// A missing mentor lesson, or one whose lesson row is gone, yields ErrNotFound.
func LessonIDForMentorLesson(ctx context.Context, db *gorm.DB, mentorLessonID string) (string, error) {
	var row struct{ LessonID string }
	err := db.WithContext(ctx).
		Table("ai_mentor_lessons AS ml").
		Select("ml.lesson_id").
		Joins("JOIN lessons l ON l.id = ml.lesson_id AND l.deleted_at IS NULL").
		Where("ml.id = ? AND ml.deleted_at IS NULL", mentorLessonID).
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return "", err
	}
	if row.LessonID == "" {
		return "", ErrNotFound
	}
	return row.LessonID, nil
}

// OwnerForLesson returns tenant and author of the course containing lessonID.
func OwnerForLesson(ctx context.Context, db *gorm.DB, lessonID string) (*LessonOwner, error) {
	var row LessonOwner
	err := db.WithContext(ctx).
		Table("lessons AS l").
		Select("l.id AS lesson_id, c.id AS course_id, c.tenant_id AS tenant_id, c.author_id AS author_id").
		Joins("JOIN courses c ON c.id = l.course_id AND c.deleted_at IS NULL").
		Where("l.id = ? AND l.deleted_at IS NULL", lessonID).
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.LessonID == "" {
		return nil, ErrNotFound
	}
	return &row, nil
}
