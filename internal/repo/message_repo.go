// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-backend/internal/domain"
)

// maxSeqRetries bounds retries when concurrent appends race for a seq.
const maxSeqRetries = 3

// NewMessage describes a message to append to a thread.
type NewMessage struct {
	ThreadID   string
	Role       domain.Role
	Content    string
	ToolName   string
	TokenCount int
}

// AppendMessage inserts a message with the next per-thread seq. The seq is
// read and written in one transaction; the (thread_id, seq) unique index
// turns a lost race into a retry.
func AppendMessage(ctx context.Context, db *gorm.DB, in NewMessage) (*domain.Message, error) {
	var (
		m   *domain.Message
		err error
	)
	for attempt := 0; attempt < maxSeqRetries; attempt++ {
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var next int64
			if err := tx.Model(&domain.Message{}).
				Where("thread_id = ?", in.ThreadID).
				Select("COALESCE(MAX(seq), 0) + 1").
				Scan(&next).Error; err != nil {
				return err
			}
			m = &domain.Message{
				ID:         uuid.NewString(),
				ThreadID:   in.ThreadID,
				Seq:        next,
				Role:       in.Role,
				Content:    in.Content,
				ToolName:   in.ToolName,
				TokenCount: in.TokenCount,
				CreatedAt:  time.Now().UTC(),
			}
			return tx.Create(m).Error
		})
		if err == nil || !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns all messages of a thread in seq order.
func ListMessages(ctx context.Context, db *gorm.DB, threadID string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("seq ASC").
		Find(&out).Error
	return out, err
}

// ListMessagesSince returns messages with seq >= fromSeq in seq order.
func ListMessagesSince(ctx context.Context, db *gorm.DB, threadID string, fromSeq int64) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("thread_id = ? AND seq >= ?", threadID, fromSeq).
		Order("seq ASC").
		Find(&out).Error
	return out, err
}

// LatestSummary returns the most recent summary message, or ErrNotFound.
func LatestSummary(ctx context.Context, db *gorm.DB, threadID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("thread_id = ? AND role = ?", threadID, domain.RoleSummary).
		Order("seq DESC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, threadID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages WHERE thread_id = ?", threadID).Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice in seq order.
func ListMessagesPage(ctx context.Context, db *gorm.DB, threadID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("seq ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}
