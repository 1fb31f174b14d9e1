// Package handlers exposes the REST endpoints of the mentor API.
//
// Handlers are transport-thin: they read the caller identity established by
// middleware.Authenticate, validate and normalize input, call the application
// services through the narrow interfaces below, and translate results and
// service errors into the standard envelopes.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-mentor-backend/internal/agent"
	"github.com/tbourn/go-mentor-backend/internal/authz"
	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/http/middleware"
	"github.com/tbourn/go-mentor-backend/internal/services"
	"github.com/tbourn/go-mentor-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ThreadService manages mentor conversation threads.
type ThreadService interface {
	Create(ctx context.Context, in services.CreateThreadInput, role string) (*services.ThreadEnvelope, error)
	Get(ctx context.Context, tenantID, userID, threadID string) (*domain.Thread, error)
	ListPage(ctx context.Context, tenantID, userID string, page, pageSize int) ([]domain.Thread, int64, error)
	Abandon(ctx context.Context, tenantID, userID, threadID string) (*domain.Thread, error)
}

// MessageService runs conversation turns.
type MessageService interface {
	Send(ctx context.Context, in services.SendInput) (*domain.Message, error)
	ListPage(ctx context.Context, tenantID, userID, threadID string, page, pageSize int) ([]domain.Message, int64, error)
	Replay(ctx context.Context, userID, threadID, key string) (*domain.Message, bool)
	Remember(ctx context.Context, userID, threadID, key, messageID string, status int)
}

// JudgeService invokes the judge tool on behalf of a caller.
type JudgeService interface {
	Invoke(ctx context.Context, caller agent.Caller, raw json.RawMessage) (*agent.Verdict, error)
}

// DocumentService manages mentor-lesson documents and their ingestion.
type DocumentService interface {
	Upload(ctx context.Context, actor authz.Actor, mentorLessonID string, files []services.UploadFile) ([]domain.Document, error)
	List(ctx context.Context, actor authz.Actor, mentorLessonID string) ([]services.DocumentSummary, error)
	Reingest(ctx context.Context, actor authz.Actor, docID string) (*domain.Document, error)
	Delete(ctx context.Context, actor authz.Actor, docID string) error
}

// Stats feeds conditional GETs. Each method returns the row count and the
// newest timestamp of the listed collection.
type Stats interface {
	Threads(ctx context.Context, tenantID, userID string) (int64, *time.Time, error)
	Messages(ctx context.Context, threadID string) (int64, *time.Time, error)
	Documents(ctx context.Context, mentorLessonID string) (int64, *time.Time, error)
}

//
// Handler wiring
//

// Handlers groups the API endpoints.
type Handlers struct {
	threads ThreadService
	msgs    MessageService
	judge   JudgeService
	docs    DocumentService
	stats   Stats

	maxContentRunes int
	maxUploadBytes  int64
}

// Options tunes request validation at the edge.
type Options struct {
	// MaxContentRunes caps message content; 0 defers to the service.
	MaxContentRunes int
	// MaxUploadBytes caps a multipart upload request; 0 disables the cap.
	MaxUploadBytes int64
}

// New constructs Handlers. stats may be nil, which disables ETags.
func New(threads ThreadService, msgs MessageService, judge JudgeService, docs DocumentService, stats Stats, opts Options) *Handlers {
	return &Handlers{
		threads:         threads,
		msgs:            msgs,
		judge:           judge,
		docs:            docs,
		stats:           stats,
		maxContentRunes: opts.MaxContentRunes,
		maxUploadBytes:  opts.MaxUploadBytes,
	}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination parses page and page_size, applying defaults and caps.
func clampPagination(c *gin.Context) (page, pageSize int) {
	page = utils.AtoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), utils.DefaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > utils.MaxPageSize {
		pageSize = utils.MaxPageSize
	}
	return page, pageSize
}

func actor(c *gin.Context) authz.Actor {
	return authz.Actor{
		TenantID: middleware.TenantID(c),
		UserID:   middleware.UserID(c),
		Role:     middleware.Role(c),
	}
}

// notModified sets a weak ETag derived from (count, newest timestamp) and
// reports whether the client's If-None-Match already matches it.
func notModified(c *gin.Context, kind, scope string, count int64, latest *time.Time) bool {
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%s:%d:%d"`, kind, scope, count, ts)
	c.Header("ETag", etag)
	return c.GetHeader("If-None-Match") == etag
}
