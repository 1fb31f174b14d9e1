package domain

import (
	"time"

	"gorm.io/gorm"
)

// ThreadStatus is the lifecycle state of a conversation thread.
type ThreadStatus string

const (
	ThreadActive    ThreadStatus = "active"
	ThreadCompleted ThreadStatus = "completed"
	ThreadAbandoned ThreadStatus = "abandoned"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	// RoleSummary marks a synthetic compaction of earlier history. It is sent
	// to models as RoleSystem.
	RoleSummary Role = "summary"
)

// ModelRole maps a stored role to the role understood by chat models.
func (r Role) ModelRole() Role {
	if r == RoleSummary {
		return RoleSystem
	}
	return r
}

// Thread is a single AI-mentor conversation owned by a user within a tenant.
// It always references a lesson that has a mentor configuration.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - TenantID / UserID: ownership scope; indexed together for listing.
//   - LessonID / MentorLessonID: the resolved lesson and its mentor binding.
//   - Status: active, completed (judge accepted) or abandoned.
//   - UserLanguage: BCP 47 tag the mentor should answer in.
//   - LastActivityAt: bumped on every message; drives idle abandonment.
type Thread struct {
	ID             string         `json:"id"               gorm:"type:char(36);primaryKey"`
	TenantID       string         `json:"tenant_id"        gorm:"type:varchar(64);not null;index:idx_owner_threads,priority:1"`
	UserID         string         `json:"user_id"          gorm:"type:varchar(64);not null;index:idx_owner_threads,priority:2"`
	LessonID       string         `json:"lesson_id"        gorm:"type:char(36);not null;index"`
	MentorLessonID string         `json:"mentor_lesson_id" gorm:"type:char(36);not null;index"`
	Status         ThreadStatus   `json:"status"           gorm:"type:varchar(16);not null;default:'active';index;check:status IN ('active','completed','abandoned')"`
	UserLanguage   string         `json:"user_language"    gorm:"type:varchar(35);not null;default:'und'"`
	LastActivityAt time.Time      `json:"last_activity_at" gorm:"index"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"                gorm:"index"`
}

// TableName returns the database table name for Thread.
func (Thread) TableName() string { return "threads" }

// Message is a single entry of a thread transcript. Seq is assigned per
// thread in insertion order and is the replay order for models.
type Message struct {
	ID         string    `json:"id"                  gorm:"type:char(36);primaryKey"`
	ThreadID   string    `json:"thread_id"           gorm:"type:char(36);not null;uniqueIndex:ux_thread_seq,priority:1"`
	Seq        int64     `json:"seq"                 gorm:"not null;uniqueIndex:ux_thread_seq,priority:2"`
	Role       Role      `json:"role"                gorm:"type:varchar(16);not null;check:role IN ('system','user','assistant','tool','summary')"`
	Content    string    `json:"content"             gorm:"type:text;not null"`
	ToolName   string    `json:"tool_name,omitempty" gorm:"type:varchar(64)"`
	TokenCount int       `json:"token_count"         gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`

	Thread Thread `json:"-" gorm:"foreignKey:ThreadID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
