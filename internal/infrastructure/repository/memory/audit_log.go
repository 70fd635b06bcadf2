package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
)

// AuditLog is the in-memory verification history, newest first per source.
type AuditLog struct {
	mu       sync.RWMutex
	bySource map[string][]mapping.VerificationResult
}

func NewAuditLog() *AuditLog {
	return &AuditLog{bySource: make(map[string][]mapping.VerificationResult)}
}

func (l *AuditLog) Append(_ context.Context, result mapping.VerificationResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.bySource[result.SourceID] = append([]mapping.VerificationResult{result}, l.bySource[result.SourceID]...)
	return nil
}

func (l *AuditLog) Recent(_ context.Context, sourceID string, limit int) ([]mapping.VerificationResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	results := l.bySource[sourceID]
	if limit <= 0 || limit > len(results) {
		limit = len(results)
	}

	out := make([]mapping.VerificationResult, limit)
	copy(out, results[:limit])
	return out, nil
}
