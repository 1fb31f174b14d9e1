// Package services – DocumentService
//
// This file implements the upload side of document ingestion: batch
// validation, lesson-author authorization, object storage and queueing.
// Extraction and embedding happen later in the ingestion worker; uploads
// return as soon as the documents are queued.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-backend/internal/authz"
	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/ingest"
	"github.com/tbourn/go-mentor-backend/internal/repo"
	"github.com/tbourn/go-mentor-backend/internal/storage"
)

// Enqueuer hands document IDs to the ingestion worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, id string) error
}

// UploadFile is one file of an upload batch. Open is only called after the
// whole batch has been validated.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// DocumentSummary is the listing view of a document.
type DocumentSummary struct {
	ID     string                `json:"id"`
	Name   string                `json:"name"`
	Type   string                `json:"type"`
	Size   int64                 `json:"size"`
	Status domain.DocumentStatus `json:"status"`
}

// DocumentService accepts, lists and manages lesson documents.
type DocumentService struct {
	DB     *gorm.DB
	Store  storage.Store
	Queue  Enqueuer
	Authz  authz.Authorizer
	Limits ingest.Limits
	Log    zerolog.Logger
}

// Upload validates the batch, checks that the actor may ingest into the
// mentor lesson, stores each file and queues it for ingestion.
func (s *DocumentService) Upload(ctx context.Context, actor authz.Actor, mentorLessonID string, files []UploadFile) ([]domain.Document, error) {
	ctx, span := otel.Tracer("services/DocumentService").Start(ctx, "Upload",
		trace.WithAttributes(
			attribute.String("mentor_lesson.id", mentorLessonID),
			attribute.String("user.id", actor.UserID),
			attribute.Int("files", len(files)),
		),
	)
	defer span.End()

	infos := make([]ingest.FileInfo, len(files))
	for i, f := range files {
		infos[i] = ingest.FileInfo{Name: f.Name, ContentType: f.ContentType, Size: f.Size}
	}
	if err := ingest.ValidateBatch(infos, s.Limits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}

	lessonID, err := repo.LessonIDForMentorLesson(ctx, s.DB, mentorLessonID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: no lesson for mentor lesson %s", ErrLessonNotFound, mentorLessonID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, authz.ActionDocumentIngest, actor, lessonID); err != nil {
		return nil, err
	}

	// The batch is all or nothing: nothing is queued until every file is
	// stored, and a failure removes the files stored so far.
	docs := make([]domain.Document, 0, len(files))
	for _, f := range files {
		d, err := s.store(ctx, actor, mentorLessonID, lessonID, f)
		if err != nil {
			s.discard(ctx, docs)
			return nil, err
		}
		docs = append(docs, *d)
	}
	for _, d := range docs {
		if err := s.Queue.Enqueue(ctx, d.ID); err != nil {
			// Left in processing; startup recovery re-queues it.
			s.Log.Error().Err(err).Str("document_id", d.ID).Msg("enqueue document")
		}
	}
	return docs, nil
}

// discard removes documents stored by a failed batch.
func (s *DocumentService) discard(ctx context.Context, docs []domain.Document) {
	ctx = context.WithoutCancel(ctx)
	for _, d := range docs {
		if err := repo.DeleteDocument(ctx, s.DB, d.ID); err != nil {
			s.Log.Warn().Err(err).Str("document_id", d.ID).Msg("discard document")
		}
		if err := s.Store.Delete(ctx, d.StorageKey); err != nil {
			s.Log.Warn().Err(err).Str("key", d.StorageKey).Msg("discard object")
		}
	}
}

func (s *DocumentService) store(ctx context.Context, actor authz.Actor, mentorLessonID, lessonID string, f UploadFile) (*domain.Document, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	limit := s.Limits.MaxFileBytes
	if limit <= 0 {
		limit = ingest.DefaultLimits().MaxFileBytes
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %v: %s", ErrInvalidUpload, ingest.ErrFileTooLarge, f.Name)
	}

	ct := ingest.NormalizeContentType(f.ContentType, f.Name)
	d := &domain.Document{
		ID:             uuid.NewString(),
		MentorLessonID: mentorLessonID,
		LessonID:       lessonID,
		UploadedBy:     actor.UserID,
		Name:           f.Name,
		Type:           ct,
		Size:           int64(len(data)),
	}
	d.StorageKey = storage.DocumentKey(mentorLessonID, d.ID, f.Name)

	if err := s.Store.Put(ctx, d.StorageKey, data, ct); err != nil {
		return nil, fmt.Errorf("store %s: %w", f.Name, err)
	}
	if err := repo.CreateDocument(ctx, s.DB, d); err != nil {
		_ = s.Store.Delete(ctx, d.StorageKey)
		return nil, err
	}
	return d, nil
}

// List returns the documents attached to a mentor lesson. Only callers of
// the course's tenant may list them.
func (s *DocumentService) List(ctx context.Context, actor authz.Actor, mentorLessonID string) ([]DocumentSummary, error) {
	ctx, span := otel.Tracer("services/DocumentService").Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("mentor_lesson.id", mentorLessonID),
			attribute.String("user.id", actor.UserID),
		),
	)
	defer span.End()

	lessonID, err := repo.LessonIDForMentorLesson(ctx, s.DB, mentorLessonID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: mentor lesson %s", ErrLessonNotFound, mentorLessonID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, authz.ActionDocumentList, actor, lessonID); err != nil {
		return nil, err
	}
	docs, err := repo.ListDocuments(ctx, s.DB, mentorLessonID)
	if err != nil {
		return nil, err
	}
	out := make([]DocumentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, DocumentSummary{ID: d.ID, Name: d.Name, Type: d.Type, Size: d.Size, Status: d.Status})
	}
	return out, nil
}

// Reingest puts a ready or failed document back through the pipeline.
// Re-ingesting a document that is already processing is a conflict.
func (s *DocumentService) Reingest(ctx context.Context, actor authz.Actor, docID string) (*domain.Document, error) {
	ctx, span := otel.Tracer("services/DocumentService").Start(ctx, "Reingest",
		trace.WithAttributes(attribute.String("document.id", docID)),
	)
	defer span.End()

	d, err := s.manageable(ctx, actor, docID)
	if err != nil {
		return nil, err
	}
	if err := repo.RestartDocument(ctx, s.DB, d.ID); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrDocumentBusy
		}
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if err := s.Queue.Enqueue(ctx, d.ID); err != nil {
		return nil, err
	}
	return repo.GetDocument(ctx, s.DB, d.ID)
}

// Delete removes a document, its chunks and its stored bytes.
func (s *DocumentService) Delete(ctx context.Context, actor authz.Actor, docID string) error {
	ctx, span := otel.Tracer("services/DocumentService").Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("document.id", docID)),
	)
	defer span.End()

	d, err := s.manageable(ctx, actor, docID)
	if err != nil {
		return err
	}
	if err := repo.DeleteDocument(ctx, s.DB, d.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	if err := s.Store.Delete(ctx, d.StorageKey); err != nil {
		s.Log.Warn().Err(err).Str("document_id", d.ID).Msg("delete stored object")
	}
	return nil
}

// RecoverProcessing re-queues documents left processing by a previous run
// and returns how many were queued.
func (s *DocumentService) RecoverProcessing(ctx context.Context) (int, error) {
	ids, err := repo.ListDocumentIDsByStatus(ctx, s.DB, domain.DocumentProcessing)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if err := s.Queue.Enqueue(ctx, id); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		s.Log.Info().Int("documents", n).Msg("re-queued unfinished documents")
	}
	return n, nil
}

func (s *DocumentService) manageable(ctx context.Context, actor authz.Actor, docID string) (*domain.Document, error) {
	d, err := repo.GetDocument(ctx, s.DB, docID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, authz.ActionDocumentManage, actor, d.LessonID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DocumentService) authorize(ctx context.Context, action string, actor authz.Actor, lessonID string) error {
	owner, err := repo.OwnerForLesson(ctx, s.DB, lessonID)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: lesson %s", ErrLessonNotFound, lessonID)
	}
	if err != nil {
		return err
	}
	if s.Authz == nil {
		return nil
	}
	err = authz.Require(ctx, s.Authz, authz.Request{
		Action:   action,
		Actor:    actor,
		Resource: authz.Resource{LessonID: owner.LessonID, TenantID: owner.TenantID, AuthorID: owner.AuthorID},
	})
	if errors.Is(err, authz.ErrDenied) {
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	return err
}
