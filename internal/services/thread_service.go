// Package services – ThreadService
//
// This file implements the ThreadService, which owns the lifecycle of mentor
// threads: creation against a mentor lesson, ownership-scoped reads, and the
// active → completed / abandoned transitions. Every transition writes an
// outbox event in the same transaction.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-backend/internal/authz"
	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/repo"
	"github.com/tbourn/go-mentor-backend/internal/utils"
)

// CreateThreadInput is the payload for ThreadService.Create.
type CreateThreadInput struct {
	MentorLessonID string
	UserID         string
	TenantID       string
	UserLanguage   string
}

// ThreadEnvelope wraps a created thread for API responses.
type ThreadEnvelope struct {
	Data *domain.Thread `json:"data"`
}

// threadEvent is the outbox payload of thread lifecycle events.
type threadEvent struct {
	ThreadID       string `json:"threadId"`
	UserID         string `json:"userId"`
	TenantID       string `json:"tenantId"`
	MentorLessonID string `json:"mentorLessonId"`
	Reason         string `json:"reason,omitempty"`
}

// ThreadService manages thread creation and status transitions.
type ThreadService struct {
	DB    *gorm.DB
	Authz authz.Authorizer

	// IdleSweepLimit caps how many threads one AbandonIdle call transitions.
	IdleSweepLimit int
}

// Create opens a thread for a mentor lesson. The lesson is resolved first,
// then the authorization hook runs, then the thread and its thread.created
// event are written together.
func (s *ThreadService) Create(ctx context.Context, in CreateThreadInput, role string) (*ThreadEnvelope, error) {
	ctx, span := otel.Tracer("services/ThreadService").Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("mentor_lesson.id", in.MentorLessonID),
			attribute.String("user.id", in.UserID),
			attribute.String("tenant.id", in.TenantID),
		),
	)
	defer span.End()

	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.TenantID) == "" {
		return nil, ErrMissingIdentity
	}
	if strings.TrimSpace(in.MentorLessonID) == "" {
		return nil, fmt.Errorf("%w: aiMentorLessonId is required", ErrValidation)
	}

	lessonID, err := repo.LessonIDForMentorLesson(ctx, s.DB, in.MentorLessonID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: no lesson for mentor lesson %s (requested by role %q)", ErrLessonNotFound, in.MentorLessonID, role)
	}
	if err != nil {
		return nil, err
	}

	owner, err := repo.OwnerForLesson(ctx, s.DB, lessonID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: no course for lesson %s (requested by role %q)", ErrLessonNotFound, lessonID, role)
	}
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, authz.ActionThreadCreate, in.TenantID, in.UserID, role, owner); err != nil {
		return nil, err
	}

	t := &domain.Thread{
		TenantID:       in.TenantID,
		UserID:         in.UserID,
		LessonID:       lessonID,
		MentorLessonID: in.MentorLessonID,
		Status:         domain.ThreadActive,
		UserLanguage:   normalizeLanguage(in.UserLanguage),
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateThread(ctx, tx, t); err != nil {
			return err
		}
		_, err := repo.AppendEvent(ctx, tx, domain.EventThreadCreated, t.ID, threadEvent{
			ThreadID: t.ID, UserID: t.UserID, TenantID: t.TenantID, MentorLessonID: t.MentorLessonID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("thread.id", t.ID))
	return &ThreadEnvelope{Data: t}, nil
}

// Get returns a thread owned by the caller.
func (s *ThreadService) Get(ctx context.Context, tenantID, userID, threadID string) (*domain.Thread, error) {
	ctx, span := otel.Tracer("services/ThreadService").Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("thread.id", threadID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	t, err := repo.GetThread(ctx, s.DB, tenantID, userID, threadID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrThreadNotFound
	}
	return t, err
}

// ListPage returns a page of the caller's threads and the total count.
func (s *ThreadService) ListPage(ctx context.Context, tenantID, userID string, page, pageSize int) ([]domain.Thread, int64, error) {
	ctx, span := otel.Tracer("services/ThreadService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	limit, offset := utils.Paginate(page, pageSize)

	total, err := repo.CountThreads(ctx, s.DB, tenantID, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Thread{}, 0, nil
	}
	items, err := repo.ListThreadsPage(ctx, s.DB, tenantID, userID, offset, limit)
	return items, total, err
}

// Abandon ends an active thread at the owner's request.
func (s *ThreadService) Abandon(ctx context.Context, tenantID, userID, threadID string) (*domain.Thread, error) {
	ctx, span := otel.Tracer("services/ThreadService").Start(ctx, "Abandon",
		trace.WithAttributes(
			attribute.String("thread.id", threadID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	t, err := repo.GetThread(ctx, s.DB, tenantID, userID, threadID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, t, domain.ThreadAbandoned, domain.EventThreadAbandoned, "user"); err != nil {
		return nil, err
	}
	return repo.GetThreadByID(ctx, s.DB, t.ID)
}

// Complete marks an active thread completed. It is called when the judge
// accepts the learner's work.
func (s *ThreadService) Complete(ctx context.Context, threadID string) error {
	ctx, span := otel.Tracer("services/ThreadService").Start(ctx, "Complete",
		trace.WithAttributes(attribute.String("thread.id", threadID)),
	)
	defer span.End()

	t, err := repo.GetThreadByID(ctx, s.DB, threadID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrThreadNotFound
	}
	if err != nil {
		return err
	}
	return s.transition(ctx, t, domain.ThreadCompleted, domain.EventThreadCompleted, "judge")
}

// AbandonIdle abandons active threads with no activity for idleFor and
// returns how many were transitioned. Threads that change state meanwhile
// are skipped.
func (s *ThreadService) AbandonIdle(ctx context.Context, idleFor time.Duration) (int, error) {
	ctx, span := otel.Tracer("services/ThreadService").Start(ctx, "AbandonIdle",
		trace.WithAttributes(attribute.String("idle_for", idleFor.String())),
	)
	defer span.End()

	limit := s.IdleSweepLimit
	if limit <= 0 {
		limit = 500
	}
	ids, err := repo.ListIdleThreadIDs(ctx, s.DB, time.Now().UTC().Add(-idleFor), limit)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, id := range ids {
		t, err := repo.GetThreadByID(ctx, s.DB, id)
		if err != nil {
			continue
		}
		err = s.transition(ctx, t, domain.ThreadAbandoned, domain.EventThreadAbandoned, "idle")
		if errors.Is(err, ErrThreadNotActive) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
	}
	span.SetAttributes(attribute.Int("abandoned", n))
	return n, nil
}

func (s *ThreadService) transition(ctx context.Context, t *domain.Thread, to domain.ThreadStatus, event, reason string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.TransitionThread(ctx, tx, t.ID, domain.ThreadActive, to); err != nil {
			return err
		}
		_, err := repo.AppendEvent(ctx, tx, event, t.ID, threadEvent{
			ThreadID: t.ID, UserID: t.UserID, TenantID: t.TenantID, MentorLessonID: t.MentorLessonID, Reason: reason,
		})
		return err
	})
	switch {
	case errors.Is(err, repo.ErrConflict):
		return ErrThreadNotActive
	case errors.Is(err, repo.ErrNotFound):
		return ErrThreadNotFound
	}
	return err
}

func (s *ThreadService) authorize(ctx context.Context, action, tenantID, userID, role string, owner *repo.LessonOwner) error {
	if s.Authz == nil {
		return nil
	}
	err := authz.Require(ctx, s.Authz, authz.Request{
		Action:   action,
		Actor:    authz.Actor{TenantID: tenantID, UserID: userID, Role: role},
		Resource: authz.Resource{LessonID: owner.LessonID, TenantID: owner.TenantID, AuthorID: owner.AuthorID},
	})
	if errors.Is(err, authz.ErrDenied) {
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	return err
}

// normalizeLanguage canonicalizes a BCP 47 tag; anything unparsable is "und".
func normalizeLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return language.Und.String()
	}
	t, err := language.Parse(tag)
	if err != nil {
		return language.Und.String()
	}
	return t.String()
}
