// Judge HTTP handler.
//
// POST /threads/{id}/judge runs the judge tool directly, outside a
// conversation turn. The body is the same ownership payload the mentor model
// would send and is validated against the tool's declared schema.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-mentor-backend/internal/agent"
	"github.com/tbourn/go-mentor-backend/internal/http/middleware"
)

// JudgeRequest is the judge tool payload.
type JudgeRequest struct {
	ThreadID string `json:"threadId" example:"5b0c3f0e-7a43-4a8e-9a38-3b1a2f7f9c11"`
	UserID   string `json:"userId"   example:"user123"`
}

// maxJudgeBody bounds the judge payload; it is two short identifiers.
const maxJudgeBody = 4 << 10

// JudgeThread godoc
// @ID          judgeThread
// @Summary     Check whether the task is complete
// @Description Evaluates the thread against the lesson's completion conditions.
// @Description An accepted verdict completes the thread.
// @Tags        Threads
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                 true  "Thread ID (UUID)"  format(uuid)
// @Param       body  body  handlers.JudgeRequest  true  "Ownership payload"
//
// @Success     200  {object}  handlers.DataResponse[agent.Verdict]
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     403  {object}  handlers.ErrorResponse  "Thread not owned by caller"
// @Failure     409  {object}  handlers.ErrorResponse  "Thread not active"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /threads/{id}/judge [post]
func (h *Handlers) JudgeThread(c *gin.Context) {
	threadID, okID := threadParam(c)
	if !okID {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxJudgeBody+1))
	if err != nil || len(raw) > maxJudgeBody {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid body")
		return
	}

	// Schema validation is the registry's job; only the path binding is
	// checked here.
	var body JudgeRequest
	if json.Unmarshal(raw, &body) == nil && body.ThreadID != "" && body.ThreadID != threadID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "threadId does not match path")
		return
	}

	caller := agent.Caller{
		TenantID: middleware.TenantID(c),
		UserID:   middleware.UserID(c),
		Role:     middleware.Role(c),
	}
	v, err := h.judge.Invoke(c.Request.Context(), caller, raw)
	if err != nil {
		failErr(c, err, "")
		return
	}
	data(c, http.StatusOK, v)
}
