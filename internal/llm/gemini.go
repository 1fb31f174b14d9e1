package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/tbourn/go-mentor-backend/internal/agent"
	"github.com/tbourn/go-mentor-backend/internal/domain"
)

const (
	defaultChatModel  = "gemini-1.5-flash"
	defaultEmbedModel = "text-embedding-004"
)

// Gemini implements ChatModel and Embedder on the Gemini API.
type Gemini struct {
	client     *genai.Client
	chatModel  string
	embedModel string
}

// NewGemini creates a client. Empty model names fall back to defaults.
func NewGemini(ctx context.Context, apiKey, chatModel, embedModel string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if chatModel == "" {
		chatModel = defaultChatModel
	}
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}
	return &Gemini{client: cl, chatModel: chatModel, embedModel: embedModel}, nil
}

func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// EmbedPages batches all texts in one request.
func (g *Gemini) EmbedPages(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(g.embedModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d texts", ErrEmbeddingMismatch, len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

// Chat sends the conversation and returns text or function calls.
func (g *Gemini) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	name := req.Model
	if name == "" {
		name = g.chatModel
	}
	m := g.client.GenerativeModel(name)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, functionDeclaration(t))
		}
		m.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	if req.JSON {
		m.ResponseMIMEType = "application/json"
	}

	history, system := toContents(req.Messages)
	if system != "" {
		// Inline system turns (summaries) extend the instruction.
		text := req.System
		if text != "" {
			text += "\n\n"
		}
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(text + system)}}
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("gemini chat: no messages")
	}

	cs := m.StartChat()
	last := history[len(history)-1]
	cs.History = history[:len(history)-1]
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return &ChatResponse{}, nil
	}

	out := &ChatResponse{}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		switch v := p.(type) {
		case genai.Text:
			b.WriteString(string(v))
		case genai.FunctionCall:
			args, err := json.Marshal(v.Args)
			if err != nil {
				return nil, fmt.Errorf("gemini function args: %w", err)
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{Name: v.Name, Args: args})
		}
	}
	out.Text = b.String()
	return out, nil
}

func functionDeclaration(t agent.Tool) *genai.FunctionDeclaration {
	props := make(map[string]*genai.Schema, len(t.Schema.Properties))
	for name, p := range t.Schema.Properties {
		s := &genai.Schema{Description: p.Description}
		switch p.Type {
		case agent.TypeNumber:
			s.Type = genai.TypeNumber
		case agent.TypeBoolean:
			s.Type = genai.TypeBoolean
		default:
			s.Type = genai.TypeString
		}
		props[name] = s
	}
	return &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: t.Description,
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   t.Schema.Required,
		},
	}
}

// toContents converts messages to Gemini turns. System messages are pulled
// out and returned joined. Tool results that answer a call made in the same
// exchange become function responses; replayed tool messages from earlier
// turns have no matching call and are rendered as model text.
func toContents(msgs []Message) ([]*genai.Content, string) {
	var (
		out    []*genai.Content
		system []string
	)
	appendPart := func(role string, part genai.Part) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, part)
			return
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{part}})
	}

	pendingCall := ""
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem, domain.RoleSummary:
			system = append(system, m.Content)
		case domain.RoleUser:
			appendPart("user", genai.Text(m.Content))
			pendingCall = ""
		case domain.RoleAssistant:
			if m.ToolCall != nil {
				var args map[string]any
				_ = json.Unmarshal(m.ToolCall.Args, &args)
				appendPart("model", genai.FunctionCall{Name: m.ToolCall.Name, Args: args})
				pendingCall = m.ToolCall.Name
				continue
			}
			if m.Content != "" {
				appendPart("model", genai.Text(m.Content))
			}
			pendingCall = ""
		case domain.RoleTool:
			if pendingCall != "" && pendingCall == m.ToolName {
				var resp map[string]any
				if err := json.Unmarshal([]byte(m.Content), &resp); err != nil {
					resp = map[string]any{"result": m.Content}
				}
				appendPart("user", genai.FunctionResponse{Name: m.ToolName, Response: resp})
				pendingCall = ""
				continue
			}
			appendPart("model", genai.Text(fmt.Sprintf("[%s result] %s", m.ToolName, m.Content)))
		}
	}
	return out, strings.Join(system, "\n\n")
}

var (
	_ ChatModel = (*Gemini)(nil)
	_ Embedder  = (*Gemini)(nil)
)
