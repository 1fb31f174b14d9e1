package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Event types written to the outbox.
const (
	EventThreadCreated   = "thread.created"
	EventThreadCompleted = "thread.completed"
	EventThreadAbandoned = "thread.abandoned"
	EventDocumentReady   = "document.ready"
	EventDocumentFailed  = "document.failed"
)

// Event is an outbox record written in the same transaction as the state
// change it describes. DispatchedAt stays nil until every handler for the
// type has succeeded, so delivery is at-least-once.
type Event struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	Type         string         `json:"type"          gorm:"type:varchar(64);not null;index"`
	AggregateID  string         `json:"aggregate_id"  gorm:"type:char(36);not null;index"`
	Payload      datatypes.JSON `json:"payload"`
	Attempts     int            `json:"attempts"      gorm:"not null;default:0"`
	LastError    string         `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at"    gorm:"index:idx_outbox_pending,priority:2"`
	DispatchedAt *time.Time     `json:"dispatched_at" gorm:"index:idx_outbox_pending,priority:1"`
}

// TableName returns the database table name for Event.
func (Event) TableName() string { return "outbox_events" }

// ActivityLog is the audit trail projected from outbox events. EventID is
// unique so replays of the same event are absorbed.
type ActivityLog struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	EventID     string    `json:"event_id"     gorm:"type:char(36);not null;uniqueIndex"`
	Type        string    `json:"type"         gorm:"type:varchar(64);not null"`
	AggregateID string    `json:"aggregate_id" gorm:"type:char(36);not null;index"`
	ActorID     string    `json:"actor_id"     gorm:"type:varchar(64)"`
	Subject     string    `json:"subject"      gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for ActivityLog.
func (ActivityLog) TableName() string { return "activity_logs" }
