package mapping

import "context"

// Repository is the authoritative mapping store. Implementations must run
// every write through EvaluateUpsert/EvaluateClaim so precedence rules hold
// no matter which backend is active.
type Repository interface {
	Upsert(ctx context.Context, m Mapping) (Mapping, error)
	Get(ctx context.Context, sourceID string) (Mapping, bool, error)
	GetByTarget(ctx context.Context, targetID string) (Mapping, bool, error)
	All(ctx context.Context) ([]Mapping, error)
	SetFlagged(ctx context.Context, sourceID string, flagged bool) error
	TouchVerified(ctx context.Context, sourceID string) error
}

// AuditLog is the append-only verification history for mappings.
// Recent returns entries newest first.
type AuditLog interface {
	Append(ctx context.Context, result VerificationResult) error
	Recent(ctx context.Context, sourceID string, limit int) ([]VerificationResult, error)
}
