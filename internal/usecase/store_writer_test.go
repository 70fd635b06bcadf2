package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
)

type auditLogStub struct {
	mu      sync.Mutex
	entries map[string][]mapping.VerificationResult
}

func newAuditLogStub() *auditLogStub {
	return &auditLogStub{entries: make(map[string][]mapping.VerificationResult)}
}

func (s *auditLogStub) Append(ctx context.Context, result mapping.VerificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[result.SourceID] = append([]mapping.VerificationResult{result}, s.entries[result.SourceID]...)
	return nil
}

func (s *auditLogStub) Recent(ctx context.Context, sourceID string, limit int) ([]mapping.VerificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.entries[sourceID]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]mapping.VerificationResult(nil), out...), nil
}

func automatedMapping(sourceID, targetID string, tier mapping.Tier, confidence float64) mapping.Mapping {
	return mapping.Mapping{
		SourceID:   sourceID,
		TargetID:   targetID,
		Tier:       tier,
		Confidence: confidence,
		Strategy:   string(StrategyNormalizedEqual),
		Provenance: mapping.ProvenanceAutomated,
	}
}

func TestStoreWriterCommitsUpsert(t *testing.T) {
	t.Parallel()

	repo := &mappingRepoStub{}
	w := NewStoreWriter(repo, newAuditLogStub(), false)

	stored, err := w.Upsert(context.Background(), automatedMapping("1", "100", mapping.TierExact, 100))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if stored.TargetID != "100" {
		t.Fatalf("unexpected stored mapping %+v", stored)
	}
	if _, found, _ := repo.Get(context.Background(), "1"); !found {
		t.Fatalf("mapping was not committed to the repository")
	}
}

func TestStoreWriterManualMappingBlocksAutomatedOverwrite(t *testing.T) {
	t.Parallel()

	repo := &mappingRepoStub{bySource: map[string]mapping.Mapping{
		"1": {SourceID: "1", TargetID: "100", Tier: mapping.TierPartial, Confidence: 80, Provenance: mapping.ProvenanceManual},
	}}
	w := NewStoreWriter(repo, newAuditLogStub(), false)

	_, err := w.Upsert(context.Background(), automatedMapping("1", "200", mapping.TierExact, 100))
	if !errors.Is(err, ErrPersistenceConflict) {
		t.Fatalf("expected persistence conflict, got %v", err)
	}

	existing, _, _ := repo.Get(context.Background(), "1")
	if existing.TargetID != "100" || existing.Provenance != mapping.ProvenanceManual {
		t.Fatalf("manual mapping was disturbed: %+v", existing)
	}
}

func TestStoreWriterRejectsTierDowngrade(t *testing.T) {
	t.Parallel()

	repo := &mappingRepoStub{bySource: map[string]mapping.Mapping{
		"1": {SourceID: "1", TargetID: "100", Tier: mapping.TierExact, Confidence: 100, Provenance: mapping.ProvenanceAutomated},
	}}
	w := NewStoreWriter(repo, newAuditLogStub(), false)

	_, err := w.Upsert(context.Background(), automatedMapping("1", "100", mapping.TierSuspicious, 50))
	if !errors.Is(err, ErrPersistenceConflict) {
		t.Fatalf("expected persistence conflict, got %v", err)
	}
}

func TestStoreWriterRejectsTargetCollision(t *testing.T) {
	t.Parallel()

	repo := &mappingRepoStub{bySource: map[string]mapping.Mapping{
		"1": {SourceID: "1", TargetID: "100", Tier: mapping.TierExact, Confidence: 100, Provenance: mapping.ProvenanceAutomated},
	}}
	w := NewStoreWriter(repo, newAuditLogStub(), false)

	_, err := w.Upsert(context.Background(), automatedMapping("2", "100", mapping.TierExact, 100))
	if !errors.Is(err, ErrPersistenceConflict) {
		t.Fatalf("expected persistence conflict, got %v", err)
	}
}

func TestStoreWriterDryRunDoesNotCommit(t *testing.T) {
	t.Parallel()

	repo := &mappingRepoStub{}
	w := NewStoreWriter(repo, newAuditLogStub(), true)

	if _, err := w.Upsert(context.Background(), automatedMapping("1", "100", mapping.TierExact, 100)); err != nil {
		t.Fatalf("dry-run upsert: %v", err)
	}

	if len(repo.bySource) != 0 {
		t.Fatalf("dry run must not write to the repository: %+v", repo.bySource)
	}
	if pending := w.PendingWrites(); len(pending) != 1 || pending[0].SourceID != "1" {
		t.Fatalf("unexpected pending writes %+v", pending)
	}
}

func TestStoreWriterDryRunEnforcesPrecedenceAgainstPending(t *testing.T) {
	t.Parallel()

	w := NewStoreWriter(&mappingRepoStub{}, newAuditLogStub(), true)

	if _, err := w.Upsert(context.Background(), automatedMapping("1", "100", mapping.TierExact, 100)); err != nil {
		t.Fatalf("first dry-run upsert: %v", err)
	}

	// A second source claiming the same pending target must be rejected
	// exactly as it would be against the real store.
	_, err := w.Upsert(context.Background(), automatedMapping("2", "100", mapping.TierExact, 100))
	if !errors.Is(err, ErrPersistenceConflict) {
		t.Fatalf("expected persistence conflict, got %v", err)
	}
}

func TestStoreWriterDryRunCollectsVerifications(t *testing.T) {
	t.Parallel()

	audit := newAuditLogStub()
	w := NewStoreWriter(&mappingRepoStub{}, audit, true)

	err := w.AppendVerification(context.Background(), mapping.VerificationResult{
		ID: "v1", SourceID: "1", Agreement: true, Tier: mapping.TierExact,
	})
	if err != nil {
		t.Fatalf("append verification: %v", err)
	}

	if entries, _ := audit.Recent(context.Background(), "1", 0); len(entries) != 0 {
		t.Fatalf("dry run must not append to the audit log: %+v", entries)
	}
}
