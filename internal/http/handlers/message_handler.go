// Message HTTP handlers.
//
// This file exposes REST endpoints for thread messages:
//   - POST /threads/{id}/messages   (send a user message, get the mentor reply)
//   - GET  /threads/{id}/messages   (list paginated messages of a thread)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user, thread, key), the handler returns that recorded
// reply and sets `Idempotency-Replayed: true`.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/http/middleware"
	"github.com/tbourn/go-mentor-backend/internal/services"
)

// PostMessageRequest is the JSON payload for sending a user message.
type PostMessageRequest struct {
	// Content is the student's message. It must be non-empty.
	Content string `json:"content" binding:"required,min=1" example:"I think I'm done with the exercise, can you check?"`
}

// PostMessageResponse is the envelope for the mentor reply.
type PostMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse contains a page of messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent converts CRLF/CR to LF, collapses 3+ blank lines to one
// paragraph break and trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message and get the mentor reply
// @Description Appends the student's message to the thread and runs one conversation turn.
// @Description The mentor may call the judge tool during the turn, which can complete the thread.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true   "Thread ID (UUID)"  format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true  "Message payload"
//
// @Success     200  {object}  handlers.PostMessageResponse  "Mentor reply"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse        "Thread not found"
// @Failure     409  {object}  handlers.ErrorResponse        "Thread not active"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /threads/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	threadID, okID := threadParam(c)
	if !okID {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	content := sanitizeContent(req.Content)
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	if h.maxContentRunes > 0 && utf8.RuneCountInString(content) > h.maxContentRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", h.maxContentRunes))
		return
	}

	uid := middleware.UserID(c)
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" {
		if prev, found := h.msgs.Replay(ctx, uid, threadID, idemKey); found {
			c.Header(middleware.HeaderIdempotencyReplayed, "true")
			ok(c, http.StatusOK, PostMessageResponse{Message: prev})
			return
		}
	}

	m, err := h.msgs.Send(ctx, services.SendInput{
		TenantID: middleware.TenantID(c),
		UserID:   uid,
		ThreadID: threadID,
		Content:  content,
	})
	if err != nil {
		failErr(c, err, ErrCodeAnswerFailed)
		return
	}

	h.msgs.Remember(ctx, uid, threadID, idemKey, m.ID, http.StatusOK)
	ok(c, http.StatusOK, PostMessageResponse{Message: m})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a thread
// @Description Returns a page of the thread's messages in insertion order. Supports weak ETag via If-None-Match.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
//
// @Param       id         path   string  true   "Thread ID (UUID)"  format(uuid)
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListMessagesResponse
// @Success     304  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Thread not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /threads/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	threadID, okID := threadParam(c)
	if !okID {
		return
	}
	tenant, uid := middleware.TenantID(c), middleware.UserID(c)

	// Ownership first so the ETag never reveals another user's thread.
	if _, err := h.threads.Get(ctx, tenant, uid, threadID); err != nil {
		failErr(c, err, "")
		return
	}
	if h.stats != nil {
		if count, latest, err := h.stats.Messages(ctx, threadID); err == nil {
			if notModified(c, "messages", threadID, count, latest) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	page, pageSize := clampPagination(c)
	items, total, err := h.msgs.ListPage(ctx, tenant, uid, threadID, page, pageSize)
	if err != nil {
		failErr(c, err, "")
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: newPagination(page, pageSize, total)})
}
