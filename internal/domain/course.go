// Package domain defines the persistence models for the mentor service:
// the course structure a mentor is attached to, conversation threads and
// their messages, lesson documents with their embedded chunks, and the
// outbox records emitted on lifecycle transitions. These types are mapped
// with GORM and form the core data layer of the application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// MentorType selects the persona and prompt templates a mentor lesson uses.
type MentorType string

const (
	MentorTypeMentor   MentorType = "mentor"
	MentorTypeTeacher  MentorType = "teacher"
	MentorTypeRoleplay MentorType = "roleplay"
)

// Valid reports whether t is one of the known mentor types.
func (t MentorType) Valid() bool {
	switch t {
	case MentorTypeMentor, MentorTypeTeacher, MentorTypeRoleplay:
		return true
	}
	return false
}

// Course is the tenant-scoped container of lessons. AuthorID is the only
// non-admin actor allowed to manage mentor material for its lessons.
type Course struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	TenantID  string         `json:"tenant_id"  gorm:"type:varchar(64);not null;index"`
	AuthorID  string         `json:"author_id"  gorm:"type:varchar(64);not null;index"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Course.
func (Course) TableName() string { return "courses" }

// Lesson belongs to a course.
type Lesson struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	CourseID  string         `json:"course_id"  gorm:"type:char(36);not null;index"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	Course Course `json:"-" gorm:"foreignKey:CourseID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Lesson.
func (Lesson) TableName() string { return "lessons" }

// MentorLesson binds an AI mentor persona to a lesson.
//
// Fields:
//   - Type: tagged variant driving prompt-template selection.
//   - Instructions: author-provided persona/system guidance.
//   - CompletionConditions: the criteria the judge evaluates a thread against.
//   - Model: optional chat model override; empty means the service default.
type MentorLesson struct {
	ID                   string         `json:"id"                    gorm:"type:char(36);primaryKey"`
	LessonID             string         `json:"lesson_id"             gorm:"type:char(36);not null;uniqueIndex"`
	Name                 string         `json:"name"                  gorm:"type:varchar(255);not null"`
	Type                 MentorType     `json:"type"                  gorm:"type:varchar(16);not null;default:'mentor';check:type IN ('mentor','teacher','roleplay')"`
	Instructions         string         `json:"instructions"          gorm:"type:text"`
	CompletionConditions string         `json:"completion_conditions" gorm:"type:text"`
	Model                string         `json:"model,omitempty"       gorm:"type:varchar(64)"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `json:"-"                     gorm:"index"`

	Lesson Lesson `json:"-" gorm:"foreignKey:LessonID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MentorLesson.
func (MentorLesson) TableName() string { return "ai_mentor_lessons" }
