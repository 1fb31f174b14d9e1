package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-mentor-backend/internal/agent"
	"github.com/tbourn/go-mentor-backend/internal/authz"
	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/http/middleware"
	"github.com/tbourn/go-mentor-backend/internal/services"
)

// ---------- stubs ----------

type stubThreads struct {
	create  func(context.Context, services.CreateThreadInput, string) (*services.ThreadEnvelope, error)
	get     func(ctx context.Context, tenantID, userID, threadID string) (*domain.Thread, error)
	list    func(ctx context.Context, tenantID, userID string, page, pageSize int) ([]domain.Thread, int64, error)
	abandon func(ctx context.Context, tenantID, userID, threadID string) (*domain.Thread, error)
}

func (s *stubThreads) Create(ctx context.Context, in services.CreateThreadInput, role string) (*services.ThreadEnvelope, error) {
	return s.create(ctx, in, role)
}
func (s *stubThreads) Get(ctx context.Context, tenantID, userID, threadID string) (*domain.Thread, error) {
	if s.get == nil {
		return &domain.Thread{ID: threadID, TenantID: tenantID, UserID: userID}, nil
	}
	return s.get(ctx, tenantID, userID, threadID)
}
func (s *stubThreads) ListPage(ctx context.Context, tenantID, userID string, page, pageSize int) ([]domain.Thread, int64, error) {
	return s.list(ctx, tenantID, userID, page, pageSize)
}
func (s *stubThreads) Abandon(ctx context.Context, tenantID, userID, threadID string) (*domain.Thread, error) {
	return s.abandon(ctx, tenantID, userID, threadID)
}

type stubMsgs struct {
	send       func(context.Context, services.SendInput) (*domain.Message, error)
	list       func(ctx context.Context, tenantID, userID, threadID string, page, pageSize int) ([]domain.Message, int64, error)
	replayed   map[string]*domain.Message
	remembered []string
}

func (s *stubMsgs) Send(ctx context.Context, in services.SendInput) (*domain.Message, error) {
	return s.send(ctx, in)
}
func (s *stubMsgs) ListPage(ctx context.Context, tenantID, userID, threadID string, page, pageSize int) ([]domain.Message, int64, error) {
	return s.list(ctx, tenantID, userID, threadID, page, pageSize)
}
func (s *stubMsgs) Replay(_ context.Context, userID, threadID, key string) (*domain.Message, bool) {
	m, ok := s.replayed[userID+"/"+threadID+"/"+key]
	return m, ok
}
func (s *stubMsgs) Remember(_ context.Context, userID, threadID, key, messageID string, _ int) {
	if key != "" {
		s.remembered = append(s.remembered, userID+"/"+threadID+"/"+key+"="+messageID)
	}
}

type stubJudge struct {
	invoke func(context.Context, agent.Caller, json.RawMessage) (*agent.Verdict, error)
}

func (s *stubJudge) Invoke(ctx context.Context, caller agent.Caller, raw json.RawMessage) (*agent.Verdict, error) {
	return s.invoke(ctx, caller, raw)
}

type stubDocs struct {
	upload   func(context.Context, authz.Actor, string, []services.UploadFile) ([]domain.Document, error)
	list     func(context.Context, authz.Actor, string) ([]services.DocumentSummary, error)
	reingest func(context.Context, authz.Actor, string) (*domain.Document, error)
	del      func(context.Context, authz.Actor, string) error
}

func (s *stubDocs) Upload(ctx context.Context, a authz.Actor, ml string, files []services.UploadFile) ([]domain.Document, error) {
	return s.upload(ctx, a, ml, files)
}
func (s *stubDocs) List(ctx context.Context, a authz.Actor, ml string) ([]services.DocumentSummary, error) {
	return s.list(ctx, a, ml)
}
func (s *stubDocs) Reingest(ctx context.Context, a authz.Actor, id string) (*domain.Document, error) {
	return s.reingest(ctx, a, id)
}
func (s *stubDocs) Delete(ctx context.Context, a authz.Actor, id string) error {
	return s.del(ctx, a, id)
}

type stubStats struct {
	count  int64
	latest *time.Time
}

func (s stubStats) Threads(context.Context, string, string) (int64, *time.Time, error) {
	return s.count, s.latest, nil
}
func (s stubStats) Messages(context.Context, string) (int64, *time.Time, error) {
	return s.count, s.latest, nil
}
func (s stubStats) Documents(context.Context, string) (int64, *time.Time, error) {
	return s.count, s.latest, nil
}

// ---------- router plumbing ----------

type deps struct {
	threads *stubThreads
	msgs    *stubMsgs
	judge   *stubJudge
	docs    *stubDocs
	stats   Stats
	opts    Options
}

func newDeps() *deps {
	return &deps{threads: &stubThreads{}, msgs: &stubMsgs{}, judge: &stubJudge{}, docs: &stubDocs{}}
}

func (d *deps) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(d.threads, d.msgs, d.judge, d.docs, d.stats, d.opts)

	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1", middleware.Authenticate(middleware.AuthOptions{}))
	api.POST("/threads", h.CreateThread)
	api.GET("/threads", h.ListThreads)
	api.GET("/threads/:id", h.GetThread)
	api.POST("/threads/:id/abandon", h.AbandonThread)
	api.POST("/threads/:id/judge", h.JudgeThread)
	msgs := api.Group("", middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	msgs.POST("/threads/:id/messages", h.PostMessage)
	api.GET("/threads/:id/messages", h.ListMessages)
	api.POST("/mentor-lessons/:id/documents", h.UploadDocuments)
	api.GET("/mentor-lessons/:id/documents", h.ListDocuments)
	api.POST("/documents/:id/reingest", h.ReingestDocument)
	api.DELETE("/documents/:id", h.DeleteDocument)
	return r
}

const (
	testTenant = "acme"
	testUser   = "u1"
	threadID   = "11111111-1111-4111-8111-111111111111"
	mlID       = "22222222-2222-4222-8222-222222222222"
	docID      = "33333333-3333-4333-8333-333333333333"
)

func do(t *testing.T, r http.Handler, method, path string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(middleware.HeaderUserID, testUser)
	req.Header.Set(middleware.HeaderTenantID, testTenant)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}
