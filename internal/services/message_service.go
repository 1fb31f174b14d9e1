// Package services – MessageService
//
// This file implements MessageService, the conversation orchestrator. For
// each learner message it checks thread ownership, keeps the history within
// the model's token budget (summarizing older turns when needed), retrieves
// lesson passages, renders the mentor-type system prompt and runs the chat
// model with the judge tool declared. Tool calls are executed through the
// registry and persisted alongside the final assistant reply.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include thread/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

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
	"github.com/tbourn/go-mentor-backend/internal/search"
	"github.com/tbourn/go-mentor-backend/internal/sysutil"
	"github.com/tbourn/go-mentor-backend/internal/utils"
)

// TokenCounter measures text and history for the token budget.
type TokenCounter interface {
	Count(model, text string) int
	CountMessages(model string, msgs []domain.Message) int
}

// SendInput is the payload for MessageService.Send.
type SendInput struct {
	TenantID string
	UserID   string
	ThreadID string
	Content  string
}

// MessageService coordinates learner messages and mentor replies.
type MessageService struct {
	DB       *gorm.DB
	Model    llm.ChatModel
	Embedder llm.Embedder
	Tokens   TokenCounter
	Judge    *JudgeService
	Log      zerolog.Logger

	DefaultModel string

	// MaxContentRunes caps learner messages.
	MaxContentRunes int
	// ContextTokens is the history budget; older turns are summarized above it.
	ContextTokens int
	// RetrievalK is the number of passages added to the system prompt.
	RetrievalK int
	// MinScore drops weak passages.
	MinScore float64
	// MaxToolRounds bounds model/tool round trips per message.
	MaxToolRounds int
	// IdempotencyTTL is how long a replayable result is kept.
	IdempotencyTTL time.Duration
}

// Send appends the learner's message and returns the persisted assistant reply.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*domain.Message, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("thread.id", in.ThreadID),
			attribute.String("user.id", in.UserID),
		),
	)
	defer span.End()

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, fmt.Errorf("%w: max %d runes", ErrContentTooLong, s.MaxContentRunes)
	}

	thread, err := repo.GetThread(ctx, s.DB, in.TenantID, in.UserID, in.ThreadID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrThreadNotFound
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
	model := sysutil.FirstNonEmpty(ml.Model, s.DefaultModel)
	span.SetAttributes(attribute.String("mentor.type", string(ml.Type)), attribute.String("model", model))

	history, err := s.history(ctx, thread.ID, model, content)
	if err != nil {
		return nil, err
	}

	userMsg, err := repo.AppendMessage(ctx, s.DB, repo.NewMessage{
		ThreadID: thread.ID, Role: domain.RoleUser, Content: content, TokenCount: s.count(model, content),
	})
	if err != nil {
		return nil, err
	}
	s.touch(ctx, thread.ID)

	system, err := prompts.System(ml.Type, prompts.SystemData{
		MentorName:           ml.Name,
		Instructions:         ml.Instructions,
		CompletionConditions: ml.CompletionConditions,
		Language:             thread.UserLanguage,
		Passages:             s.retrieve(ctx, ml.ID, content),
	})
	if err != nil {
		return nil, err
	}

	msgs := make([]llm.Message, 0, len(history)+4)
	for _, m := range append(history, *userMsg) {
		msgs = append(msgs, llm.Message{Role: m.Role.ModelRole(), Content: m.Content, ToolName: m.ToolName})
	}

	caller := agent.Caller{TenantID: in.TenantID, UserID: in.UserID}
	reply, err := s.converse(agent.WithCaller(ctx, caller), thread, model, system, msgs)
	if err != nil {
		return nil, err
	}

	assistant, err := repo.AppendMessage(ctx, s.DB, repo.NewMessage{
		ThreadID: thread.ID, Role: domain.RoleAssistant, Content: reply, TokenCount: s.count(model, reply),
	})
	if err != nil {
		return nil, err
	}
	s.touch(ctx, thread.ID)
	return assistant, nil
}

// converse runs the model, executing tool calls until it answers with text.
func (s *MessageService) converse(ctx context.Context, thread *domain.Thread, model, system string, msgs []llm.Message) (string, error) {
	var tools []agent.Tool
	if s.Judge != nil {
		tools = s.Judge.Registry().Tools()
	}
	rounds := s.MaxToolRounds
	if rounds <= 0 {
		rounds = 3
	}

	for round := 0; ; round++ {
		req := llm.ChatRequest{Model: model, System: system, Messages: msgs, Tools: tools}
		if round >= rounds {
			req.Tools = nil
		}
		resp, err := s.Model.Chat(ctx, req)
		if err != nil {
			return "", fmt.Errorf("chat model: %w", err)
		}
		if len(resp.ToolCalls) == 0 || req.Tools == nil {
			return strings.TrimSpace(resp.Text), nil
		}

		for _, call := range resp.ToolCalls {
			result := s.runTool(ctx, thread, call)
			if _, err := repo.AppendMessage(ctx, s.DB, repo.NewMessage{
				ThreadID: thread.ID, Role: domain.RoleTool, Content: result, ToolName: call.Name, TokenCount: s.count(model, result),
			}); err != nil {
				return "", err
			}
			c := call
			msgs = append(msgs,
				llm.Message{Role: domain.RoleAssistant, ToolCall: &c},
				llm.Message{Role: domain.RoleTool, ToolName: call.Name, Content: result},
			)
		}
	}
}

// runTool executes a model tool call and returns its JSON result. The judge
// payload is built from the thread and caller, never from model arguments.
func (s *MessageService) runTool(ctx context.Context, thread *domain.Thread, call llm.ToolCall) string {
	if s.Judge == nil || call.Name != agent.JudgeToolName {
		return errorResult(fmt.Errorf("%w: %s", agent.ErrUnknownTool, call.Name))
	}
	caller, _ := agent.CallerFromContext(ctx)
	args, _ := json.Marshal(agent.JudgePayload{ThreadID: thread.ID, UserID: caller.UserID})

	out, err := s.Judge.Registry().Execute(ctx, call.Name, args)
	if err != nil {
		s.Log.Warn().Err(err).Str("thread_id", thread.ID).Str("tool", call.Name).Msg("tool call failed")
		return errorResult(err)
	}
	return string(out)
}

func errorResult(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}

// history returns the messages the model sees before the new learner
// message: the latest summary followed by everything after it. When that
// exceeds the token budget, all of it is compacted into a new summary.
func (s *MessageService) history(ctx context.Context, threadID, model, incoming string) ([]domain.Message, error) {
	var fromSeq int64
	var prev string
	sum, err := repo.LatestSummary(ctx, s.DB, threadID)
	switch {
	case err == nil:
		fromSeq, prev = sum.Seq, sum.Content
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}

	msgs, err := repo.ListMessagesSince(ctx, s.DB, threadID, fromSeq)
	if err != nil {
		return nil, err
	}
	if s.ContextTokens <= 0 || s.Tokens == nil {
		return msgs, nil
	}
	used := s.Tokens.CountMessages(model, msgs) + s.Tokens.Count(model, incoming)
	if used <= s.ContextTokens {
		return msgs, nil
	}

	var older []domain.Message
	for _, m := range msgs {
		if m.Role != domain.RoleSummary {
			older = append(older, m)
		}
	}
	if len(older) == 0 {
		return msgs, nil
	}

	summary, err := s.summarize(ctx, model, prev, older)
	if err != nil {
		// Sending the full history beats failing the turn.
		s.Log.Warn().Err(err).Str("thread_id", threadID).Msg("history summary failed")
		return msgs, nil
	}
	m, err := repo.AppendMessage(ctx, s.DB, repo.NewMessage{
		ThreadID: threadID, Role: domain.RoleSummary, Content: summary, TokenCount: s.count(model, summary),
	})
	if err != nil {
		return nil, err
	}
	s.Log.Debug().Str("thread_id", threadID).Int("tokens_before", used).Int("messages", len(older)).Msg("history summarized")
	return []domain.Message{*m}, nil
}

func (s *MessageService) summarize(ctx context.Context, model, previous string, msgs []domain.Message) (string, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "summarize",
		trace.WithAttributes(attribute.Int("messages", len(msgs))),
	)
	defer span.End()

	system, err := prompts.Summary(prompts.SummaryData{Previous: previous, Transcript: transcript(msgs)})
	if err != nil {
		return "", err
	}
	resp, err := s.Model.Chat(ctx, llm.ChatRequest{
		Model:    model,
		System:   system,
		Messages: []llm.Message{{Role: domain.RoleUser, Content: "Write the summary now."}},
	})
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(resp.Text)
	if out == "" {
		return "", errors.New("empty summary")
	}
	return out, nil
}

// retrieve ranks the mentor lesson's ready chunks against the message.
// Embedding the query is best effort; without it ranking is lexical.
func (s *MessageService) retrieve(ctx context.Context, mentorLessonID, query string) []prompts.Passage {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "retrieve",
		trace.WithAttributes(attribute.String("mentor_lesson.id", mentorLessonID)),
	)
	defer span.End()

	k := s.RetrievalK
	if k <= 0 {
		k = 4
	}
	chunks, err := repo.ListReadyChunks(ctx, s.DB, mentorLessonID)
	if err != nil {
		s.Log.Warn().Err(err).Str("mentor_lesson_id", mentorLessonID).Msg("load chunks")
		return nil
	}
	if len(chunks) == 0 {
		return nil
	}

	passages := make([]search.Passage, 0, len(chunks))
	for _, c := range chunks {
		p := search.Passage{ID: c.ID, DocumentID: c.DocumentID, Position: c.Position, Text: c.Content, Vector: c.Embedding.Slice()}
		if n, ok := c.Metadata.Data().PageNumber(); ok {
			p.Page = &n
		}
		passages = append(passages, p)
	}

	var qvec []float32
	if s.Embedder != nil {
		if vecs, err := s.Embedder.EmbedPages(ctx, []string{query}); err == nil && len(vecs) == 1 {
			qvec = vecs[0]
		} else if err != nil {
			s.Log.Debug().Err(err).Msg("query embedding unavailable, using lexical ranking")
		}
	}

	idx := search.NewIndex(passages, search.WithMinScore(s.MinScore))
	results := idx.TopK(query, qvec, k)
	span.SetAttributes(attribute.Int("results", len(results)))

	out := make([]prompts.Passage, 0, len(results))
	for _, r := range results {
		out = append(out, prompts.Passage{Text: r.Text, Page: r.Page})
	}
	return out
}

// ListPage returns a page of a thread's messages in insertion order.
func (s *MessageService) ListPage(ctx context.Context, tenantID, userID, threadID string, page, pageSize int) ([]domain.Message, int64, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("thread.id", threadID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if _, err := repo.GetThread(ctx, s.DB, tenantID, userID, threadID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, 0, ErrThreadNotFound
		}
		return nil, 0, err
	}

	limit, offset := utils.Paginate(page, pageSize)
	total, err := repo.CountMessages(ctx, s.DB, threadID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, threadID, offset, limit)
	return items, total, err
}

// Replay returns the reply recorded for an idempotency key, if any.
func (s *MessageService) Replay(ctx context.Context, userID, threadID, key string) (*domain.Message, bool) {
	if key == "" {
		return nil, false
	}
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, threadID, key, time.Now().UTC())
	if err != nil || rec == nil {
		return nil, false
	}
	m, err := repo.GetMessage(ctx, s.DB, rec.MessageID)
	if err != nil {
		return nil, false
	}
	return m, true
}

// Remember records the reply for an idempotency key. Best effort.
func (s *MessageService) Remember(ctx context.Context, userID, threadID, key, messageID string, status int) {
	if key == "" {
		return
	}
	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if _, err := repo.CreateIdempotency(ctx, s.DB, userID, threadID, key, messageID, status, ttl); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		s.Log.Warn().Err(err).Str("thread_id", threadID).Msg("store idempotency record")
	}
}

func (s *MessageService) count(model, text string) int {
	if s.Tokens == nil {
		return 0
	}
	return s.Tokens.Count(model, text)
}

// touch refreshes the thread's activity time. A failure leaves the thread
// looking idle to AbandonIdle, so it is logged.
func (s *MessageService) touch(ctx context.Context, threadID string) {
	if err := repo.TouchThread(ctx, s.DB, threadID, time.Now().UTC()); err != nil {
		s.Log.Warn().Err(err).Str("thread_id", threadID).Msg("touch thread")
	}
}
