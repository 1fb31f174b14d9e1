package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/tbourn/go-mentor-backend/internal/agent"
	"github.com/tbourn/go-mentor-backend/internal/services"
)

func TestJudgeThread_ForwardsRawPayloadAndCaller(t *testing.T) {
	d := newDeps()
	var gotCaller agent.Caller
	var gotRaw string
	d.judge.invoke = func(_ context.Context, caller agent.Caller, raw json.RawMessage) (*agent.Verdict, error) {
		gotCaller, gotRaw = caller, string(raw)
		return &agent.Verdict{Status: agent.VerdictAccepted, Rationale: "all conditions met"}, nil
	}

	body := `{"threadId":"` + threadID + `","userId":"` + testUser + `"}`
	w := do(t, d.router(), http.MethodPost, "/api/v1/threads/"+threadID+"/judge", strings.NewReader(body),
		map[string]string{"X-User-Role": "student"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if gotRaw != body {
		t.Fatalf("payload must reach the registry unchanged, got %s", gotRaw)
	}
	if gotCaller != (agent.Caller{TenantID: testTenant, UserID: testUser, Role: "student"}) {
		t.Fatalf("caller=%+v", gotCaller)
	}
	resp := decode[DataResponse[agent.Verdict]](t, w)
	if resp.Data.Status != agent.VerdictAccepted || resp.Data.Rationale == "" {
		t.Fatalf("resp=%s", w.Body.String())
	}
}

func TestJudgeThread_PathMismatchRejectedBeforeJudging(t *testing.T) {
	d := newDeps()
	d.judge.invoke = func(context.Context, agent.Caller, json.RawMessage) (*agent.Verdict, error) {
		t.Fatalf("judge must not run")
		return nil, nil
	}
	other := "44444444-4444-4444-8444-444444444444"
	w := do(t, d.router(), http.MethodPost, "/api/v1/threads/"+threadID+"/judge",
		strings.NewReader(`{"threadId":"`+other+`","userId":"u1"}`), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestJudgeThread_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrInvalidToolPayload, http.StatusBadRequest, ErrCodeInvalidTool},
		{services.ErrThreadNotOwned, http.StatusForbidden, ErrCodeNotOwned},
		{services.ErrThreadNotActive, http.StatusConflict, ErrCodeThreadClosed},
	}
	for _, tc := range cases {
		d := newDeps()
		d.judge.invoke = func(context.Context, agent.Caller, json.RawMessage) (*agent.Verdict, error) { return nil, tc.err }
		w := do(t, d.router(), http.MethodPost, "/api/v1/threads/"+threadID+"/judge",
			strings.NewReader(`{"threadId":"`+threadID+`","userId":"someone"}`), nil)
		if er := decode[ErrorResponse](t, w); w.Code != tc.status || er.Code != tc.code {
			t.Fatalf("%v: %d %+v", tc.err, w.Code, er)
		}
	}
}

func TestJudgeThread_OversizedBody(t *testing.T) {
	d := newDeps()
	big := `{"threadId":"` + strings.Repeat("x", maxJudgeBody) + `"}`
	w := do(t, d.router(), http.MethodPost, "/api/v1/threads/"+threadID+"/judge", strings.NewReader(big), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}
