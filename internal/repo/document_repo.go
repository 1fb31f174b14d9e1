// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Document
// and Chunk models used by the ingestion pipeline.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-backend/internal/domain"
)

// CreateDocument inserts d in the processing state.
func CreateDocument(ctx context.Context, db *gorm.DB, d *domain.Document) error {
	now := time.Now().UTC()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Status = domain.DocumentProcessing
	d.CreatedAt, d.UpdatedAt = now, now
	return db.WithContext(ctx).Create(d).Error
}

// GetDocument fetches a document by ID.
func GetDocument(ctx context.Context, db *gorm.DB, id string) (*domain.Document, error) {
	var d domain.Document
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDocuments returns the documents attached to a mentor lesson, oldest first.
func ListDocuments(ctx context.Context, db *gorm.DB, mentorLessonID string) ([]domain.Document, error) {
	var out []domain.Document
	err := db.WithContext(ctx).
		Where("mentor_lesson_id = ?", mentorLessonID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// ListDocumentIDsByStatus returns the IDs of documents in status.
func ListDocumentIDsByStatus(ctx context.Context, db *gorm.DB, status domain.DocumentStatus) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("status = ?", status).
		Order("created_at asc").
		Pluck("id", &ids).Error
	return ids, err
}

// FinishDocument moves a processing document to a terminal status. Only a
// document still in processing is updated, so the terminal status is
// written once; otherwise ErrConflict (or ErrNotFound).
func FinishDocument(ctx context.Context, db *gorm.DB, id string, status domain.DocumentStatus, reason string) error {
	res := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ? AND status = ?", id, domain.DocumentProcessing).
		Updates(map[string]any{
			"status":         status,
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := GetDocument(ctx, db, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// RestartDocument puts a terminal document back into processing for
// re-ingestion. A document already processing yields ErrConflict.
func RestartDocument(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ? AND status IN ?", id, []domain.DocumentStatus{domain.DocumentReady, domain.DocumentFailed}).
		Updates(map[string]any{
			"status":         domain.DocumentProcessing,
			"failure_reason": "",
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := GetDocument(ctx, db, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// DeleteDocument removes a document and its chunks.
func DeleteDocument(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&domain.Chunk{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ReplaceChunks deletes any previous chunks of documentID and inserts chunks
// in position order. Callers run it inside the persist transaction.
func ReplaceChunks(ctx context.Context, db *gorm.DB, documentID string, chunks []domain.Chunk) error {
	tx := db.WithContext(ctx)
	if err := tx.Where("document_id = ?", documentID).Delete(&domain.Chunk{}).Error; err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.NewString()
		}
		chunks[i].DocumentID = documentID
		chunks[i].CreatedAt = now
	}
	return tx.CreateInBatches(chunks, 100).Error
}

// ListChunks returns a document's chunks in position order.
func ListChunks(ctx context.Context, db *gorm.DB, documentID string) ([]domain.Chunk, error) {
	var out []domain.Chunk
	err := db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("position asc").
		Find(&out).Error
	return out, err
}

// ListReadyChunks returns the chunks of every ready document attached to a
// mentor lesson, grouped by document and ordered by position.
func ListReadyChunks(ctx context.Context, db *gorm.DB, mentorLessonID string) ([]domain.Chunk, error) {
	var out []domain.Chunk
	err := db.WithContext(ctx).
		Select("document_chunks.*").
		Joins("JOIN documents d ON d.id = document_chunks.document_id").
		Where("d.mentor_lesson_id = ? AND d.status = ?", mentorLessonID, domain.DocumentReady).
		Order("d.created_at asc, document_chunks.document_id asc, document_chunks.position asc").
		Find(&out).Error
	return out, err
}
