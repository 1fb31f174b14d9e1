// Package authz decides whether an actor may perform an action on a
// lesson-scoped resource. Decisions come from a Rego policy evaluated with OPA.
package authz

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Actions checked by the services.
const (
	ActionThreadCreate   = "thread.create"
	ActionDocumentIngest = "document.ingest"
	ActionDocumentManage = "document.manage"
	ActionDocumentList   = "document.list"
)

// RoleAdmin may manage any lesson's documents.
const RoleAdmin = "admin"

// ErrDenied is returned by Require when the policy does not allow the request.
var ErrDenied = errors.New("access denied")

// Actor is the authenticated caller.
type Actor struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
}

// Resource is the lesson-scoped target of an action.
type Resource struct {
	LessonID string `json:"lesson_id"`
	TenantID string `json:"tenant_id"`
	AuthorID string `json:"author_id"`
}

// Request is one authorization question.
type Request struct {
	Action   string
	Actor    Actor
	Resource Resource
}

// Authorizer answers authorization requests.
type Authorizer interface {
	Allow(ctx context.Context, req Request) (bool, error)
}

// Require returns ErrDenied (wrapped with the action) unless a allows req.
func Require(ctx context.Context, a Authorizer, req Request) error {
	ok, err := a.Allow(ctx, req)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDenied, req.Action)
	}
	return nil
}

// DefaultPolicy lets any caller open a thread unless lesson access is
// enforced, lets callers of the course's tenant list its documents, and lets
// only the course author or an admin change them. Policies are Rego v1.
const DefaultPolicy = `
package mentor.authz

default allow := false

document_actions := {"document.ingest", "document.manage"}

allow if {
	input.action == "thread.create"
	not input.config.enforce_lesson_access
}

allow if {
	input.action == "thread.create"
	input.config.enforce_lesson_access
	input.actor.tenant_id == input.resource.tenant_id
}

allow if {
	input.action == "document.list"
	input.actor.tenant_id != ""
	input.actor.tenant_id == input.resource.tenant_id
}

allow if {
	input.action in document_actions
	input.actor.role == "admin"
}

allow if {
	input.action in document_actions
	input.actor.user_id != ""
	input.actor.user_id == input.resource.author_id
}
`

// OPA evaluates requests against a prepared Rego query.
type OPA struct {
	query   rego.PreparedEvalQuery
	enforce bool
}

// Options configures the OPA authorizer.
type Options struct {
	PolicyFile          string // empty uses DefaultPolicy
	EnforceLessonAccess bool
}

// NewOPA compiles the policy and prepares data.mentor.authz.allow.
func NewOPA(ctx context.Context, opts Options) (*OPA, error) {
	policy := DefaultPolicy
	if opts.PolicyFile != "" {
		b, err := os.ReadFile(opts.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("read policy: %w", err)
		}
		policy = string(b)
	}

	r := rego.New(
		rego.Query("data.mentor.authz.allow"),
		rego.Module("mentor_authz.rego", policy),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &OPA{query: query, enforce: opts.EnforceLessonAccess}, nil
}

// Allow evaluates req. An undefined result is a deny.
func (o *OPA) Allow(ctx context.Context, req Request) (bool, error) {
	input := map[string]any{
		"action":   req.Action,
		"actor":    req.Actor,
		"resource": req.Resource,
		"config": map[string]any{
			"enforce_lesson_access": o.enforce,
		},
	}
	results, err := o.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := results[0].Expressions[0].Value.(bool)
	return allowed, nil
}
