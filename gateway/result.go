package gateway

import (
	"time"

	"github.com/gate4ai/toolgate/shared"
)

// InvocationStatus is the closed set of terminal invocation outcomes.
type InvocationStatus string

const (
	StatusCompleted InvocationStatus = "completed"
	StatusFailed    InvocationStatus = "failed"
)

// CallResult is the structured response of a single invocation. Responses
// are always structured objects, never free text.
type CallResult struct {
	InvocationID string           `json:"invocationId"`
	Operation    string           `json:"operation"`
	Status       InvocationStatus `json:"status"`
	DryRun       bool             `json:"dryRun,omitempty"`

	// Result holds the operation output for completed executions.
	Result map[string]interface{} `json:"result,omitempty"`

	// Scope is the affected scope computed by a preview; set for dry runs
	// and for destructive commits.
	Scope *Scope `json:"scope,omitempty"`

	// ConfirmToken is issued by a dry run whose scope exceeds the auto-safe
	// threshold; it authorizes exactly one later commit of the same scope.
	ConfirmToken     string `json:"confirmToken,omitempty"`
	ConfirmExpiresAt string `json:"confirmExpiresAt,omitempty"` // RFC 3339

	Error *shared.GatewayError `json:"error,omitempty"`

	Meta map[string]interface{} `json:"meta,omitempty"`

	StartedAt   string `json:"startedAt"`             // RFC 3339
	CompletedAt string `json:"completedAt,omitempty"` // RFC 3339
	DurationMS  int64  `json:"durationMs"`
}

func (r *CallResult) finish(start time.Time) {
	now := time.Now().UTC()
	r.CompletedAt = now.Format(time.RFC3339)
	r.DurationMS = now.Sub(start).Milliseconds()
}
