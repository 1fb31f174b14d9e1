// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Thread model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When a thread is not found (or not owned by the caller), functions
//     return gorm.ErrRecordNotFound (exported here as ErrNotFound).
//   - Status transitions are conditional; a transition from a state the
//     thread is no longer in returns ErrConflict.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-backend/internal/domain"
)

// ErrConflict reports a conditional update that matched no row because the
// record was not in the expected state.
var ErrConflict = errors.New("state conflict")

// CreateThread inserts t, assigning an ID and timestamps when empty.
func CreateThread(ctx context.Context, db *gorm.DB, t *domain.Thread) error {
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.ThreadActive
	}
	if t.LastActivityAt.IsZero() {
		t.LastActivityAt = now
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return db.WithContext(ctx).Create(t).Error
}

// GetThread fetches a thread by ID scoped to its owner.
func GetThread(ctx context.Context, db *gorm.DB, tenantID, userID, id string) (*domain.Thread, error) {
	var t domain.Thread
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND user_id = ?", id, tenantID, userID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetThreadByID fetches a thread by ID without an ownership filter. Used by
// background jobs and ownership checks that need to tell "missing" from
// "owned by someone else".
func GetThreadByID(ctx context.Context, db *gorm.DB, id string) (*domain.Thread, error) {
	var t domain.Thread
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// CountThreads returns the number of threads owned by userID in tenantID.
func CountThreads(ctx context.Context, db *gorm.DB, tenantID, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Thread{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Count(&total).Error
	return total, err
}

// ListThreadsPage returns a page of the owner's threads, most recent activity first.
func ListThreadsPage(ctx context.Context, db *gorm.DB, tenantID, userID string, offset, limit int) ([]domain.Thread, error) {
	var out []domain.Thread
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("last_activity_at desc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TransitionThread moves a thread from one status to another. The update
// only applies while the thread is still in from; otherwise ErrConflict
// (or ErrNotFound when the thread does not exist).
func TransitionThread(ctx context.Context, db *gorm.DB, id string, from, to domain.ThreadStatus) error {
	now := time.Now().UTC()
	updates := map[string]any{"status": to, "updated_at": now}
	if to == domain.ThreadCompleted {
		updates["completed_at"] = now
	}
	res := db.WithContext(ctx).
		Model(&domain.Thread{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := GetThreadByID(ctx, db, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// TouchThread records activity on a thread.
func TouchThread(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Thread{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_activity_at": at, "updated_at": at}).Error
}

// ListIdleThreadIDs returns active threads with no activity since cutoff.
func ListIdleThreadIDs(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]string, error) {
	var ids []string
	q := db.WithContext(ctx).
		Model(&domain.Thread{}).
		Where("status = ? AND last_activity_at < ?", domain.ThreadActive, cutoff).
		Order("last_activity_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Pluck("id", &ids).Error
	return ids, err
}
