package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const validThread = "0b7f3a52-4c52-4f1e-9a4e-3d1f0b7c2a11"

func echoTool(name string) Tool {
	return Tool{
		Name:   name,
		Schema: Schema{Properties: map[string]Property{"x": {Type: TypeString}}},
		Exec: func(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
			return args, nil
		},
	}
}

func TestRegistry_RegisterRejectsDuplicatesAndBlanks(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("a")))
	require.Error(t, r.Register(echoTool("a")))
	require.Error(t, r.Register(Tool{Name: "", Exec: echoTool("x").Exec}))
	require.Error(t, r.Register(Tool{Name: "b"}))
	require.Panics(t, func() { r.MustRegister(echoTool("a")) })
}

func TestRegistry_ToolsSorted(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("zeta"))
	r.MustRegister(echoTool("alpha"))
	tools := r.Tools()
	require.Len(t, tools, 2)
	require.Equal(t, "alpha", tools[0].Name)
	require.Equal(t, "zeta", tools[1].Name)
}

func TestRegistry_ExecuteUnknown(t *testing.T) {
	_, err := NewRegistry().Execute(context.Background(), "nope", json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistry_ExecuteValidatesBeforeRunning(t *testing.T) {
	ran := false
	r := NewRegistry()
	r.MustRegister(JudgeTool(func(context.Context, JudgePayload) (*Verdict, error) {
		ran = true
		return &Verdict{Status: VerdictAccepted}, nil
	}))

	bad := []string{
		`[]`,
		`null`,
		`{"userId":"u1"}`,
		`{"threadId":"` + validThread + `"}`,
		`{"threadId":"not-a-uuid","userId":"u1"}`,
		`{"threadId":"` + validThread + `","userId":""}`,
		`{"threadId":"` + validThread + `","userId":"u1","extra":true}`,
		`{"threadId":42,"userId":"u1"}`,
	}
	for _, p := range bad {
		_, err := r.Execute(context.Background(), JudgeToolName, json.RawMessage(p))
		require.ErrorIs(t, err, ErrInvalidPayload, "payload %s", p)
	}
	require.False(t, ran, "executor must not run on invalid payloads")

	out, err := r.Execute(context.Background(), JudgeToolName, json.RawMessage(`{"threadId":"`+validThread+`","userId":"u1"}`))
	require.NoError(t, err)
	require.True(t, ran)

	var v Verdict
	require.NoError(t, json.Unmarshal(out, &v))
	require.True(t, v.Accepted())
}

func TestJudgeTool_PropagatesErrors(t *testing.T) {
	boom := errors.New("thread not owned")
	r := NewRegistry()
	r.MustRegister(JudgeTool(func(_ context.Context, in JudgePayload) (*Verdict, error) {
		require.Equal(t, "u1", in.UserID)
		return nil, boom
	}))
	_, err := r.Execute(context.Background(), JudgeToolName, json.RawMessage(`{"threadId":"`+validThread+`","userId":"u1"}`))
	require.ErrorIs(t, err, boom)
}

func TestCallerContext(t *testing.T) {
	_, ok := CallerFromContext(context.Background())
	require.False(t, ok)
	ctx := WithCaller(context.Background(), Caller{TenantID: "t", UserID: "u"})
	c, ok := CallerFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "u", c.UserID)
}
