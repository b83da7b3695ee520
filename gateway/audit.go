package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gate4ai/toolgate/shared"
)

// AuditRecord captures one completed invocation for an external audit
// collaborator. The gateway itself persists nothing.
type AuditRecord struct {
	InvocationID string
	CallerID     string
	Operation    string
	Kind         OperationKind
	Status       InvocationStatus
	DryRun       bool
	ErrorCode    shared.ErrorCode
	Duration     time.Duration
	Timestamp    time.Time
}

// AuditSink receives audit records. Appends are best effort: a failing sink
// is logged and never fails the invocation.
type AuditSink interface {
	Append(ctx context.Context, rec *AuditRecord) error
}

var _ AuditSink = (*MemoryAuditSink)(nil)

// MemoryAuditSink is an in-process sink for tests and single-node setups.
type MemoryAuditSink struct {
	mu      sync.Mutex
	records []AuditRecord
}

func NewMemoryAuditSink() *MemoryAuditSink {
	return &MemoryAuditSink{}
}

func (s *MemoryAuditSink) Append(_ context.Context, rec *AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

// Records returns a copy of everything appended so far.
func (s *MemoryAuditSink) Records() []AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}
