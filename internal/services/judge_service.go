// Package services – JudgeService
//
// This file implements the judge tool: an ownership-checked evaluation of a
// thread transcript against the mentor lesson's completion conditions. The
// same routine serves model tool calls and direct API requests; both enter
// through the agent registry so the payload is validated against the
// declared schema first.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-backend/internal/agent"
	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/llm"
	"github.com/tbourn/go-mentor-backend/internal/prompts"
	"github.com/tbourn/go-mentor-backend/internal/repo"
	"github.com/tbourn/go-mentor-backend/internal/sysutil"
)

// JudgeService evaluates whether a learner met a lesson's completion conditions.
type JudgeService struct {
	DB      *gorm.DB
	Model   llm.ChatModel
	Threads *ThreadService
	Log     zerolog.Logger

	// DefaultModel is used when the mentor lesson names none.
	DefaultModel string

	once     sync.Once
	registry *agent.Registry
}

// modelVerdict is the JSON document the judge prompt asks for.
type modelVerdict struct {
	Accepted  bool   `json:"accepted"`
	Rationale string `json:"rationale"`
}

// Registry returns the tool registry holding the judge tool, building it
// on first use.
func (s *JudgeService) Registry() *agent.Registry {
	s.once.Do(func() {
		s.registry = agent.NewRegistry()
		s.registry.MustRegister(agent.JudgeTool(s.judge))
	})
	return s.registry
}

// Invoke runs the judge tool for caller with a raw JSON payload, exactly as
// a model tool call would.
func (s *JudgeService) Invoke(ctx context.Context, caller agent.Caller, raw json.RawMessage) (*agent.Verdict, error) {
	ctx, span := otel.Tracer("services/JudgeService").Start(ctx, "Invoke",
		trace.WithAttributes(attribute.String("user.id", caller.UserID)),
	)
	defer span.End()

	out, err := s.Registry().Execute(agent.WithCaller(ctx, caller), agent.JudgeToolName, raw)
	if err != nil {
		return nil, toolError(err)
	}
	var v agent.Verdict
	if err := json.Unmarshal(out, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// toolError maps registry errors onto service kinds.
func toolError(err error) error {
	if errors.Is(err, agent.ErrInvalidPayload) {
		return fmt.Errorf("%w: %v", ErrInvalidToolPayload, err)
	}
	return err
}

// judge is the tool executor. The payload must name the caller and a thread
// the caller owns in their tenant; that is checked before any model call.
func (s *JudgeService) judge(ctx context.Context, in agent.JudgePayload) (*agent.Verdict, error) {
	ctx, span := otel.Tracer("services/JudgeService").Start(ctx, "judge",
		trace.WithAttributes(attribute.String("thread.id", in.ThreadID)),
	)
	defer span.End()

	caller, ok := agent.CallerFromContext(ctx)
	if !ok || caller.UserID == "" {
		return nil, ErrMissingIdentity
	}
	if in.UserID != caller.UserID {
		return nil, ErrThreadNotOwned
	}
	thread, err := repo.GetThread(ctx, s.DB, caller.TenantID, caller.UserID, in.ThreadID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrThreadNotOwned
	}
	if err != nil {
		return nil, err
	}
	if thread.Status != domain.ThreadActive {
		return nil, ErrThreadNotActive
	}

	ml, err := repo.GetMentorLesson(ctx, s.DB, thread.MentorLessonID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrLessonNotFound
	}
	if err != nil {
		return nil, err
	}

	msgs, err := repo.ListMessages(ctx, s.DB, thread.ID)
	if err != nil {
		return nil, err
	}
	system, err := prompts.Judge(prompts.JudgeData{
		MentorType:           ml.Type,
		CompletionConditions: ml.CompletionConditions,
		Transcript:           transcript(msgs),
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.Model.Chat(ctx, llm.ChatRequest{
		Model:    sysutil.FirstNonEmpty(ml.Model, s.DefaultModel),
		System:   system,
		Messages: []llm.Message{{Role: domain.RoleUser, Content: "Evaluate the transcript now."}},
		JSON:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("judge model: %w", err)
	}

	v := parseVerdict(resp.Text)
	if v.Accepted() {
		if err := s.Threads.Complete(ctx, thread.ID); err != nil && !errors.Is(err, ErrThreadNotActive) {
			return nil, err
		}
	}
	span.SetAttributes(attribute.String("verdict", v.Status))
	s.Log.Info().Str("thread_id", thread.ID).Str("verdict", v.Status).Msg("judge verdict")
	return v, nil
}

// parseVerdict reads the model's JSON answer. Anything unreadable counts as
// rejected so the conversation can continue.
func parseVerdict(text string) *agent.Verdict {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		text = text[i : j+1]
	}

	var mv modelVerdict
	if err := json.Unmarshal([]byte(text), &mv); err != nil {
		return &agent.Verdict{Status: agent.VerdictRejected, Rationale: "The evaluation could not be read; please try again."}
	}
	status := agent.VerdictRejected
	if mv.Accepted {
		status = agent.VerdictAccepted
	}
	return &agent.Verdict{Status: status, Rationale: strings.TrimSpace(mv.Rationale)}
}

// transcript renders stored messages for prompts. Tool results are left out.
func transcript(msgs []domain.Message) []prompts.Line {
	out := make([]prompts.Line, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == domain.RoleTool {
			continue
		}
		out = append(out, prompts.Line{Role: m.Role, Content: m.Content})
	}
	return out
}
