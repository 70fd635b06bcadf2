package mapping

import (
	"fmt"
	"strings"
	"time"
)

// Tier is the discrete confidence bucket assigned to a candidate or mapping.
// Ordering is total: exact > partial > suspicious > error.
type Tier string

const (
	TierExact      Tier = "exact"
	TierPartial    Tier = "partial"
	TierSuspicious Tier = "suspicious"
	TierError      Tier = "error"
)

var tierRanks = map[Tier]int{
	TierExact:      3,
	TierPartial:    2,
	TierSuspicious: 1,
	TierError:      0,
}

func (t Tier) Rank() int {
	return tierRanks[t]
}

func (t Tier) Valid() bool {
	_, ok := tierRanks[t]
	return ok
}

func ParseTier(raw string) (Tier, error) {
	tier := Tier(strings.ToLower(strings.TrimSpace(raw)))
	if !tier.Valid() {
		return "", fmt.Errorf("unknown tier %q", raw)
	}
	return tier, nil
}

// Provenance records whether a mapping came from a human or the pipeline.
type Provenance string

const (
	ProvenanceManual    Provenance = "manual"
	ProvenanceAutomated Provenance = "automated"
)

func (p Provenance) Valid() bool {
	return p == ProvenanceManual || p == ProvenanceAutomated
}

// Mapping is the durable source->target correspondence for one club.
// There is at most one active mapping per source id; mappings are never
// hard-deleted, only flagged.
type Mapping struct {
	SourceID       string
	TargetID       string
	TargetName     string
	Tier           Tier
	Confidence     float64
	Strategy       string
	Provenance     Provenance
	Flagged        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastVerifiedAt *time.Time
}

func (m Mapping) Validate() error {
	if strings.TrimSpace(m.SourceID) == "" {
		return fmt.Errorf("mapping source id is required")
	}
	if strings.TrimSpace(m.TargetID) == "" {
		return fmt.Errorf("mapping target id is required")
	}
	if !m.Tier.Valid() {
		return fmt.Errorf("mapping tier %q is invalid", m.Tier)
	}
	if !m.Provenance.Valid() {
		return fmt.Errorf("mapping provenance %q is invalid", m.Provenance)
	}
	if m.Confidence < 0 || m.Confidence > 100 {
		return fmt.Errorf("mapping confidence %.2f is out of range", m.Confidence)
	}

	return nil
}

// VerificationResult is one append-only audit entry produced by the auditor.
type VerificationResult struct {
	ID               string
	SourceID         string
	VerifiedTargetID string
	Agreement        bool
	Tier             Tier
	Confidence       float64
	Note             string
	CheckedAt        time.Time
}

// ConflictError reports an upsert the store rejected to protect an existing
// mapping. It is surfaced to the caller, never silently dropped.
type ConflictError struct {
	SourceID string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("mapping conflict for source %s: %s", e.SourceID, e.Reason)
}

// EvaluateUpsert decides whether incoming may replace existing. It is the
// single enforcement point for the precedence invariants: manual mappings are
// untouchable by the pipeline, and an automated mapping may only be replaced
// by an equal-or-higher tier with no confidence loss.
func EvaluateUpsert(existing *Mapping, incoming Mapping) error {
	if err := incoming.Validate(); err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	if existing.Provenance == ProvenanceManual && incoming.Provenance != ProvenanceManual {
		return &ConflictError{
			SourceID: incoming.SourceID,
			Reason:   fmt.Sprintf("existing mapping to %s is manual", existing.TargetID),
		}
	}
	if incoming.Provenance == ProvenanceManual {
		return nil
	}

	if incoming.Tier.Rank() < existing.Tier.Rank() {
		return &ConflictError{
			SourceID: incoming.SourceID,
			Reason:   fmt.Sprintf("tier %s would downgrade existing %s", incoming.Tier, existing.Tier),
		}
	}
	if incoming.Tier.Rank() == existing.Tier.Rank() && incoming.Confidence < existing.Confidence {
		return &ConflictError{
			SourceID: incoming.SourceID,
			Reason: fmt.Sprintf("confidence %.2f would downgrade existing %.2f at tier %s",
				incoming.Confidence, existing.Confidence, existing.Tier),
		}
	}

	return nil
}

// EvaluateClaim rejects an upsert whose target id is already owned by a
// different source team at an equal or higher tier. Two clubs colliding on one
// target id is a data defect that must go to manual review, not be guessed at.
func EvaluateClaim(owner *Mapping, incoming Mapping) error {
	if owner == nil || owner.SourceID == incoming.SourceID {
		return nil
	}
	if incoming.Provenance == ProvenanceManual {
		return nil
	}
	if owner.Tier.Rank() >= incoming.Tier.Rank() {
		return &ConflictError{
			SourceID: incoming.SourceID,
			Reason:   fmt.Sprintf("target %s already mapped from source %s", incoming.TargetID, owner.SourceID),
		}
	}

	return nil
}
