// Thread HTTP handlers.
//
// This file exposes REST endpoints for mentor threads:
//   - POST /threads               (start a thread for a mentor lesson)
//   - GET  /threads               (list, paginated, ETag support)
//   - GET  /threads/{id}          (fetch one)
//   - POST /threads/{id}/abandon  (close without completion)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/http/middleware"
	"github.com/tbourn/go-mentor-backend/internal/services"
)

// CreateThreadRequest is the JSON payload for starting a thread.
type CreateThreadRequest struct {
	// MentorLessonID selects the AI mentor lesson.
	MentorLessonID string `json:"aiMentorLessonId" binding:"required" example:"5b0c3f0e-7a43-4a8e-9a38-3b1a2f7f9c11"`
	// UserID, when present, must match the authenticated user.
	UserID string `json:"userId,omitempty" example:"user123"`
	// UserLanguage is a BCP 47 tag; invalid tags are stored as "und".
	UserLanguage string `json:"userLanguage" example:"en-GB"`
}

// ListThreadsResponse wraps a page of threads and pagination information.
type ListThreadsResponse struct {
	Threads    []domain.Thread `json:"threads"`
	Pagination Pagination      `json:"pagination"`
}

// CreateThread godoc
// @ID          createThread
// @Summary     Start a mentor thread
// @Description Resolves the lesson behind the AI mentor lesson, checks access and opens an active thread.
// @Tags        Threads
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.CreateThreadRequest  true  "Thread payload"
//
// @Success     201  {object}  services.ThreadEnvelope
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Mentor lesson not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /threads [post]
func (h *Handlers) CreateThread(c *gin.Context) {
	var req CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "aiMentorLessonId required")
		return
	}
	uid := middleware.UserID(c)
	if req.UserID != "" && req.UserID != uid {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "userId does not match the authenticated user")
		return
	}

	env, err := h.threads.Create(c.Request.Context(), services.CreateThreadInput{
		MentorLessonID: strings.TrimSpace(req.MentorLessonID),
		UserID:         uid,
		TenantID:       middleware.TenantID(c),
		UserLanguage:   req.UserLanguage,
	}, middleware.Role(c))
	if err != nil {
		failErr(c, err, "")
		return
	}
	created(c, c.FullPath()+"/"+env.Data.ID, env)
}

// ListThreads godoc
// @ID          listThreads
// @Summary     List threads (paginated)
// @Description Returns a page of the caller's threads. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Threads
// @Produce     json
// @Security    BearerAuth
//
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false  "ETag from a previous response"
//
// @Success     200  {object}  handlers.ListThreadsResponse
// @Success     304  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /threads [get]
func (h *Handlers) ListThreads(c *gin.Context) {
	ctx := c.Request.Context()
	tenant, uid := middleware.TenantID(c), middleware.UserID(c)
	page, pageSize := clampPagination(c)

	if h.stats != nil {
		if count, latest, err := h.stats.Threads(ctx, tenant, uid); err == nil {
			if notModified(c, "threads", tenant+"/"+uid, count, latest) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.threads.ListPage(ctx, tenant, uid, page, pageSize)
	if err != nil {
		failErr(c, err, "")
		return
	}
	ok(c, http.StatusOK, ListThreadsResponse{Threads: items, Pagination: newPagination(page, pageSize, total)})
}

// GetThread godoc
// @ID          getThread
// @Summary     Get a thread
// @Tags        Threads
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Thread ID (UUID)"  format(uuid)
//
// @Success     200  {object}  services.ThreadEnvelope
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Thread not found"
// @Router      /threads/{id} [get]
func (h *Handlers) GetThread(c *gin.Context) {
	id, okID := threadParam(c)
	if !okID {
		return
	}
	t, err := h.threads.Get(c.Request.Context(), middleware.TenantID(c), middleware.UserID(c), id)
	if err != nil {
		failErr(c, err, "")
		return
	}
	ok(c, http.StatusOK, services.ThreadEnvelope{Data: t})
}

// AbandonThread godoc
// @ID          abandonThread
// @Summary     Abandon a thread
// @Description Moves an active thread to abandoned. Completed or abandoned threads yield 409.
// @Tags        Threads
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Thread ID (UUID)"  format(uuid)
//
// @Success     200  {object}  services.ThreadEnvelope
// @Failure     404  {object}  handlers.ErrorResponse  "Thread not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Thread not active"
// @Router      /threads/{id}/abandon [post]
func (h *Handlers) AbandonThread(c *gin.Context) {
	id, okID := threadParam(c)
	if !okID {
		return
	}
	t, err := h.threads.Abandon(c.Request.Context(), middleware.TenantID(c), middleware.UserID(c), id)
	if err != nil {
		failErr(c, err, "")
		return
	}
	ok(c, http.StatusOK, services.ThreadEnvelope{Data: t})
}

// threadParam validates the :id path parameter, writing 400 on failure.
func threadParam(c *gin.Context) (string, bool) { return uuidParam(c, "thread id") }
