package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
)

// StoreWriter is the single serialized write path into the mapping store.
// Matching may run concurrently, but only one upsert is ever in flight, which
// is what keeps the precedence invariants honest under concurrent discovery.
// In dry-run mode intended writes are collected instead of committed, while
// precedence is still evaluated against both the store and the pending set.
type StoreWriter struct {
	mu     sync.Mutex
	repo   mapping.Repository
	audit  mapping.AuditLog
	dryRun bool

	pending        map[string]mapping.Mapping
	pendingByTgt   map[string]string
	pendingResults []mapping.VerificationResult
}

func NewStoreWriter(repo mapping.Repository, audit mapping.AuditLog, dryRun bool) *StoreWriter {
	return &StoreWriter{
		repo:         repo,
		audit:        audit,
		dryRun:       dryRun,
		pending:      make(map[string]mapping.Mapping),
		pendingByTgt: make(map[string]string),
	}
}

func (w *StoreWriter) DryRun() bool {
	return w.dryRun
}

// Upsert enforces the precedence rules and either commits or records the
// write. A rejected write returns an error matching ErrPersistenceConflict.
func (w *StoreWriter) Upsert(ctx context.Context, m mapping.Mapping) (mapping.Mapping, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	existing, err := w.lookupLocked(ctx, m.SourceID)
	if err != nil {
		return mapping.Mapping{}, err
	}
	if err := mapping.EvaluateUpsert(existing, m); err != nil {
		return mapping.Mapping{}, classifyConflict(err)
	}

	owner, err := w.lookupByTargetLocked(ctx, m.TargetID)
	if err != nil {
		return mapping.Mapping{}, err
	}
	if err := mapping.EvaluateClaim(owner, m); err != nil {
		return mapping.Mapping{}, classifyConflict(err)
	}

	if w.dryRun {
		now := time.Now().UTC()
		if existing != nil {
			m.CreatedAt = existing.CreatedAt
		} else {
			m.CreatedAt = now
		}
		m.UpdatedAt = now
		w.pending[m.SourceID] = m
		w.pendingByTgt[m.TargetID] = m.SourceID
		return m, nil
	}

	stored, err := w.repo.Upsert(ctx, m)
	if err != nil {
		return mapping.Mapping{}, classifyConflict(err)
	}

	return stored, nil
}

func (w *StoreWriter) SetFlagged(ctx context.Context, sourceID string, flagged bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dryRun {
		if m, ok := w.pending[sourceID]; ok {
			m.Flagged = flagged
			w.pending[sourceID] = m
		}
		return nil
	}

	return w.repo.SetFlagged(ctx, sourceID, flagged)
}

func (w *StoreWriter) TouchVerified(ctx context.Context, sourceID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dryRun {
		return nil
	}

	return w.repo.TouchVerified(ctx, sourceID)
}

func (w *StoreWriter) AppendVerification(ctx context.Context, result mapping.VerificationResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dryRun {
		w.pendingResults = append(w.pendingResults, result)
		return nil
	}
	if w.audit == nil {
		return fmt.Errorf("audit log is not configured")
	}

	return w.audit.Append(ctx, result)
}

// PendingWrites returns the intended mappings of a dry run, for reporting.
func (w *StoreWriter) PendingWrites() []mapping.Mapping {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]mapping.Mapping, 0, len(w.pending))
	for _, m := range w.pending {
		out = append(out, m)
	}
	return out
}

func (w *StoreWriter) lookupLocked(ctx context.Context, sourceID string) (*mapping.Mapping, error) {
	if m, ok := w.pending[sourceID]; ok {
		return &m, nil
	}

	stored, found, err := w.repo.Get(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("read mapping for %s: %w", sourceID, err)
	}
	if !found {
		return nil, nil
	}

	return &stored, nil
}

func (w *StoreWriter) lookupByTargetLocked(ctx context.Context, targetID string) (*mapping.Mapping, error) {
	if sourceID, ok := w.pendingByTgt[targetID]; ok {
		if m, ok := w.pending[sourceID]; ok {
			return &m, nil
		}
	}

	stored, found, err := w.repo.GetByTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("read mapping for target %s: %w", targetID, err)
	}
	if !found {
		return nil, nil
	}

	return &stored, nil
}

func classifyConflict(err error) error {
	var conflict *mapping.ConflictError
	if errors.As(err, &conflict) {
		return fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	return err
}
