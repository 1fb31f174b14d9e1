// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the transactional outbox and the
// activity log it feeds.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-mentor-backend/internal/domain"
)

// AppendEvent writes an outbox record. Pass the transaction that performs
// the state change so both commit together.
func AppendEvent(ctx context.Context, db *gorm.DB, typ, aggregateID string, payload any) (*domain.Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	ev := &domain.Event{
		ID:          uuid.NewString(),
		Type:        typ,
		AggregateID: aggregateID,
		Payload:     datatypes.JSON(raw),
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

// ListPendingEvents returns undispatched events with fewer than maxAttempts
// failures, oldest first.
func ListPendingEvents(ctx context.Context, db *gorm.DB, limit, maxAttempts int) ([]domain.Event, error) {
	var out []domain.Event
	q := db.WithContext(ctx).
		Where("dispatched_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempts < ?", maxAttempts)
	}
	err := q.Order("created_at asc, id asc").Limit(limit).Find(&out).Error
	return out, err
}

// MarkEventDispatched stamps an event as delivered.
func MarkEventDispatched(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("id = ? AND dispatched_at IS NULL", id).
		Update("dispatched_at", at).Error
}

// MarkEventFailed increments the attempt counter and records the error.
func MarkEventFailed(ctx context.Context, db *gorm.DB, id, reason string) error {
	return db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
}

// RecordActivity inserts an activity row for an event. A second insert for
// the same event is ignored; the returned bool reports whether a row was written.
func RecordActivity(ctx context.Context, db *gorm.DB, a *domain.ActivityLog) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(a)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListActivity returns activity rows for an aggregate, oldest first.
func ListActivity(ctx context.Context, db *gorm.DB, aggregateID string) ([]domain.ActivityLog, error) {
	var out []domain.ActivityLog
	err := db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}
