package agent

import "context"

type contextKey string

const callerKey contextKey = "caller"

// Caller is the authenticated identity on whose behalf a tool runs.
type Caller struct {
	TenantID string
	UserID   string
	Role     string
}

// WithCaller returns a context carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext retrieves the caller, if present.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}
