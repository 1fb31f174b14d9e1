package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/services"
)

func TestCreateThread_PassesIdentityAndWrapsData(t *testing.T) {
	d := newDeps()
	var got services.CreateThreadInput
	var gotRole string
	d.threads.create = func(_ context.Context, in services.CreateThreadInput, role string) (*services.ThreadEnvelope, error) {
		got, gotRole = in, role
		return &services.ThreadEnvelope{Data: &domain.Thread{ID: threadID, Status: domain.ThreadActive}}, nil
	}
	r := d.router()

	w := do(t, r, http.MethodPost, "/api/v1/threads",
		jsonBody(t, map[string]string{"aiMentorLessonId": " " + mlID + " ", "userLanguage": "pt-br"}), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	want := services.CreateThreadInput{MentorLessonID: mlID, UserID: testUser, TenantID: testTenant, UserLanguage: "pt-br"}
	if got != want || gotRole != "student" {
		t.Fatalf("input=%+v role=%q", got, gotRole)
	}
	env := decode[services.ThreadEnvelope](t, w)
	if env.Data == nil || env.Data.ID != threadID {
		t.Fatalf("expected {data: thread}, got %s", w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/api/v1/threads/"+threadID {
		t.Fatalf("Location=%q", loc)
	}
}

func TestCreateThread_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   map[string]string
		err    error
		status int
		code   string
	}{
		{"missing lesson id", map[string]string{"userLanguage": "en"}, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"foreign user id", map[string]string{"aiMentorLessonId": mlID, "userId": "someone-else"}, nil, http.StatusForbidden, ErrCodeForbidden},
		{"unknown mentor lesson", map[string]string{"aiMentorLessonId": mlID}, fmt.Errorf("%w: no lesson for mentor lesson %s", services.ErrLessonNotFound, mlID), http.StatusNotFound, ErrCodeNotFound},
		{"denied", map[string]string{"aiMentorLessonId": mlID}, services.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
		{"internal", map[string]string{"aiMentorLessonId": mlID}, fmt.Errorf("db down"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newDeps()
			d.threads.create = func(context.Context, services.CreateThreadInput, string) (*services.ThreadEnvelope, error) {
				if tc.err == nil {
					t.Fatalf("service must not be called")
				}
				return nil, tc.err
			}
			w := do(t, d.router(), http.MethodPost, "/api/v1/threads", jsonBody(t, tc.body), nil)
			er := decode[ErrorResponse](t, w)
			if w.Code != tc.status || er.Code != tc.code || er.RequestID == "" {
				t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateThread_Unauthenticated(t *testing.T) {
	d := newDeps()
	r := d.router()
	req := jsonBody(t, map[string]string{"aiMentorLessonId": mlID})
	w := do(t, r, http.MethodPost, "/api/v1/threads", req, map[string]string{"X-User-ID": ""})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestListThreads_PaginationAndETag(t *testing.T) {
	d := newDeps()
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	d.stats = stubStats{count: 3, latest: &ts}
	calls := 0
	d.threads.list = func(_ context.Context, tenant, user string, page, size int) ([]domain.Thread, int64, error) {
		calls++
		if tenant != testTenant || user != testUser || page != 2 || size != 2 {
			t.Fatalf("args %s %s %d %d", tenant, user, page, size)
		}
		return []domain.Thread{{ID: "c"}}, 3, nil
	}
	r := d.router()

	w := do(t, r, http.MethodGet, "/api/v1/threads?page=2&page_size=2", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	resp := decode[ListThreadsResponse](t, w)
	if len(resp.Threads) != 1 || resp.Pagination != (Pagination{Page: 2, PageSize: 2, Total: 3, TotalPages: 2, HasNext: false}) {
		t.Fatalf("resp=%+v", resp)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	w = do(t, r, http.MethodGet, "/api/v1/threads?page=2&page_size=2", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified || calls != 1 {
		t.Fatalf("expected 304 without listing, got %d calls=%d", w.Code, calls)
	}
}

func TestGetAndAbandonThread(t *testing.T) {
	d := newDeps()
	d.threads.get = func(context.Context, string, string, string) (*domain.Thread, error) {
		return nil, services.ErrThreadNotFound
	}
	d.threads.abandon = func(_ context.Context, _, _, id string) (*domain.Thread, error) {
		return &domain.Thread{ID: id, Status: domain.ThreadAbandoned}, nil
	}
	r := d.router()

	if w := do(t, r, http.MethodGet, "/api/v1/threads/not-a-uuid", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/v1/threads/"+threadID, nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing thread: %d", w.Code)
	}

	w := do(t, r, http.MethodPost, "/api/v1/threads/"+threadID+"/abandon", nil, nil)
	env := decode[services.ThreadEnvelope](t, w)
	if w.Code != http.StatusOK || env.Data.Status != domain.ThreadAbandoned {
		t.Fatalf("abandon: %d %s", w.Code, w.Body.String())
	}

	d.threads.abandon = func(context.Context, string, string, string) (*domain.Thread, error) {
		return nil, services.ErrThreadNotActive
	}
	w = do(t, d.router(), http.MethodPost, "/api/v1/threads/"+threadID+"/abandon", nil, nil)
	if er := decode[ErrorResponse](t, w); w.Code != http.StatusConflict || er.Code != ErrCodeThreadClosed {
		t.Fatalf("second abandon: %d %+v", w.Code, er)
	}
}
