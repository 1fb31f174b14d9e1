package agent

import (
	"context"
	"encoding/json"
)

// JudgeToolName is the name the model uses to request a completion check.
const JudgeToolName = "judge"

// JudgeDescription tells the model when to call the judge.
const JudgeDescription = "run when the user indicates task completion or asks to be checked."

// Verdict statuses.
const (
	VerdictAccepted = "accepted"
	VerdictRejected = "rejected"
)

// JudgePayload names the thread to judge and the user claiming it.
type JudgePayload struct {
	ThreadID string `json:"threadId"`
	UserID   string `json:"userId"`
}

// Verdict is the judge's decision on a thread.
type Verdict struct {
	Status    string `json:"status"`
	Rationale string `json:"rationale"`
}

// Accepted reports whether the task was judged complete.
func (v Verdict) Accepted() bool { return v.Status == VerdictAccepted }

// JudgeFunc evaluates a thread. Ownership is checked by the implementation
// against the caller carried in ctx.
type JudgeFunc func(ctx context.Context, in JudgePayload) (*Verdict, error)

// JudgeSchema is the declared input of the judge tool.
var JudgeSchema = Schema{
	Properties: map[string]Property{
		"threadId": {Type: TypeString, Format: FormatUUID, Description: "ID of the thread being judged."},
		"userId":   {Type: TypeString, Description: "ID of the user who owns the thread."},
	},
	Required: []string{"threadId", "userId"},
}

// JudgeTool wraps fn as a registry tool.
func JudgeTool(fn JudgeFunc) Tool {
	return Tool{
		Name:        JudgeToolName,
		Description: JudgeDescription,
		Schema:      JudgeSchema,
		Exec: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			var in JudgePayload
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			v, err := fn(ctx, in)
			if err != nil {
				return nil, err
			}
			return json.Marshal(v)
		},
	}
}
