// Document HTTP handlers.
//
// This file exposes REST endpoints for mentor-lesson documents:
//   - POST   /mentor-lessons/{id}/documents  (multipart upload, queued for ingestion)
//   - GET    /mentor-lessons/{id}/documents  (list with ingestion status)
//   - POST   /documents/{id}/reingest        (run ingestion again)
//   - DELETE /documents/{id}                 (remove document and chunks)
package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-mentor-backend/internal/services"
)

// uploadField is the multipart field carrying the files.
const uploadField = "files"

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

// UploadDocuments godoc
// @ID          uploadDocuments
// @Summary     Upload documents for a mentor lesson
// @Description Accepts up to three PDF, DOCX or plain-text files (10 MiB each). Each file is stored
// @Description and queued for ingestion; the response returns immediately with status "processing".
// @Tags        Documents
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
//
// @Param       id     path      string  true  "Mentor lesson ID (UUID)"  format(uuid)
// @Param       files  formData  file    true  "Documents (repeat the field for several files)"
//
// @Success     202  {object}  handlers.DataResponse[[]domain.Document]
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid upload"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the lesson author"
// @Failure     404  {object}  handlers.ErrorResponse  "Mentor lesson not found"
// @Failure     413  {object}  handlers.ErrorResponse  "Request too large"
// @Router      /mentor-lessons/{id}/documents [post]
func (h *Handlers) UploadDocuments(c *gin.Context) {
	mlID, okID := uuidParam(c, "mentor lesson id")
	if !okID {
		return
	}
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "upload too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart form with a \"files\" field required")
		return
	}
	defer func() { _ = c.Request.MultipartForm.RemoveAll() }()

	headers := c.Request.MultipartForm.File[uploadField]
	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadFile(fh))
	}

	docs, err := h.docs.Upload(c.Request.Context(), actor(c), mlID, files)
	if err != nil {
		failErr(c, err, "")
		return
	}
	data(c, http.StatusAccepted, docs)
}

func uploadFile(fh *multipart.FileHeader) services.UploadFile {
	return services.UploadFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
}

// ListDocuments godoc
// @ID          listDocuments
// @Summary     List documents of a mentor lesson
// @Tags        Documents
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Mentor lesson ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.DataResponse[[]services.DocumentSummary]
// @Success     304  "Not Modified"
// @Failure     403  {object}  handlers.ErrorResponse  "Lesson belongs to another tenant"
// @Failure     404  {object}  handlers.ErrorResponse  "Mentor lesson not found"
// @Router      /mentor-lessons/{id}/documents [get]
func (h *Handlers) ListDocuments(c *gin.Context) {
	ctx := c.Request.Context()
	mlID, okID := uuidParam(c, "mentor lesson id")
	if !okID {
		return
	}
	// Authorize before the ETag so a 304 never answers a caller who may
	// not see the listing.
	items, err := h.docs.List(ctx, actor(c), mlID)
	if err != nil {
		failErr(c, err, "")
		return
	}
	if h.stats != nil {
		if count, latest, err := h.stats.Documents(ctx, mlID); err == nil && count > 0 {
			if notModified(c, "documents", mlID, count, latest) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}
	data(c, http.StatusOK, items)
}

// ReingestDocument godoc
// @ID          reingestDocument
// @Summary     Re-run ingestion for a document
// @Description Resets a ready or failed document to processing and queues it again.
// @Tags        Documents
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Document ID (UUID)"  format(uuid)
//
// @Success     202  {object}  handlers.DataResponse[domain.Document]
// @Failure     403  {object}  handlers.ErrorResponse  "Not the lesson author"
// @Failure     404  {object}  handlers.ErrorResponse  "Document not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Document still processing"
// @Router      /documents/{id}/reingest [post]
func (h *Handlers) ReingestDocument(c *gin.Context) {
	id, okID := uuidParam(c, "document id")
	if !okID {
		return
	}
	d, err := h.docs.Reingest(c.Request.Context(), actor(c), id)
	if err != nil {
		failErr(c, err, "")
		return
	}
	data(c, http.StatusAccepted, d)
}

// DeleteDocument godoc
// @ID          deleteDocument
// @Summary     Delete a document
// @Tags        Documents
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Document ID (UUID)"  format(uuid)
//
// @Success     204  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the lesson author"
// @Failure     404  {object}  handlers.ErrorResponse  "Document not found"
// @Router      /documents/{id} [delete]
func (h *Handlers) DeleteDocument(c *gin.Context) {
	id, okID := uuidParam(c, "document id")
	if !okID {
		return
	}
	if err := h.docs.Delete(c.Request.Context(), actor(c), id); err != nil {
		failErr(c, err, "")
		return
	}
	noContent(c)
}

func uuidParam(c *gin.Context, what string) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" must be a UUID")
		return "", false
	}
	return id, true
}
