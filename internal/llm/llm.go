// Package llm defines the chat and embedding model contracts used by the
// mentor service, with a Gemini implementation and a deterministic offline
// implementation for development without credentials.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/tbourn/go-mentor-backend/internal/agent"
	"github.com/tbourn/go-mentor-backend/internal/domain"
)

// ErrEmbeddingMismatch is returned when a provider answers with a different
// number of vectors than texts it was given.
var ErrEmbeddingMismatch = errors.New("embedding count mismatch")

// ToolCall is a model's request to run a tool.
type ToolCall struct {
	Name string
	Args json.RawMessage
}

// Message is one turn of model input. Role uses the model-facing roles;
// summaries must already be mapped to system.
type Message struct {
	Role     domain.Role
	Content  string
	ToolName string
	// ToolCall is set on an assistant turn that requested a tool within the
	// current exchange.
	ToolCall *ToolCall
}

// ChatRequest is one model invocation.
type ChatRequest struct {
	Model    string
	System   string
	Messages []Message
	Tools    []agent.Tool
	// JSON asks the model to answer with a JSON document.
	JSON bool
}

// ChatResponse carries either text or tool calls.
type ChatResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// ChatModel generates replies.
type ChatModel interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Embedder turns page texts into vectors. The output has exactly one vector
// per input text, in input order.
type Embedder interface {
	EmbedPages(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider is a backend that both chats and embeds.
type Provider interface {
	ChatModel
	Embedder
}

// WithTimeout bounds every Chat and EmbedPages call of p by d. A
// non-positive d returns p unchanged.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return timed{next: p, d: d}
}

type timed struct {
	next Provider
	d    time.Duration
}

func (t timed) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Chat(ctx, req)
}

func (t timed) EmbedPages(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.EmbedPages(ctx, texts)
}
