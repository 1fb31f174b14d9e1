// Package agent holds the tools a mentor model may call during a
// conversation turn. Tools declare a JSON schema; the registry validates
// every payload against it before the executor runs.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownTool is returned when no tool is registered under a name.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidPayload is returned when tool arguments do not match the schema.
	ErrInvalidPayload = errors.New("invalid tool payload")
)

// ExecutorFunc runs a tool with already-validated arguments.
type ExecutorFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Tool is a named capability offered to the model.
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Exec        ExecutorFunc
}

// Registry stores tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Names are unique.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Exec == nil {
		return fmt.Errorf("executor is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool already registered for %s", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// MustRegister adds a tool or panics.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns the registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute validates args against the tool's schema and runs it.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if err := t.Schema.Validate(args); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, name, err)
	}
	return t.Exec(ctx, args)
}
