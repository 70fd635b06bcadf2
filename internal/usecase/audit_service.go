package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/team-reconciler/internal/domain/entity"
	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
	"github.com/riskibarqy/team-reconciler/internal/platform/logging"
)

const defaultAuditWorkers = 4

// AuditReport summarizes one verification pass over all active mappings.
type AuditReport struct {
	Total      int       `json:"total"`
	Agreed     int       `json:"agreed"`
	Disagreed  int       `json:"disagreed"`
	Flagged    int       `json:"flagged"`
	Cleared    int       `json:"cleared"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// AuditService re-checks stored mappings against fresh provider data and
// flags drift. It never rewrites a mapping's target: disagreement only sets
// the flag, and flagged mappings stay active until a human resolves them.
type AuditService struct {
	lookup     LookupClient
	mappings   mapping.Repository
	audit      mapping.AuditLog
	aliases    aliasPinSource
	normalizer *Normalizer
	classifier *Classifier
	workers    int
	logger     *logging.Logger
}

type aliasPinSource interface {
	PinFor(sourceID string) (string, bool)
}

func NewAuditService(
	lookup LookupClient,
	mappings mapping.Repository,
	audit mapping.AuditLog,
	aliases aliasPinSource,
	normalizer *Normalizer,
	classifier *Classifier,
	workers int,
	logger *logging.Logger,
) *AuditService {
	if logger == nil {
		logger = logging.Default()
	}
	if workers <= 0 {
		workers = defaultAuditWorkers
	}

	return &AuditService{
		lookup:     lookup,
		mappings:   mappings,
		audit:      audit,
		aliases:    aliases,
		normalizer: normalizer,
		classifier: classifier,
		workers:    workers,
		logger:     logger,
	}
}

// VerifyAll runs one verification cycle over every active mapping, manual
// and automated alike. Reads fan out over a bounded pool; all store writes
// serialize through the shared writer.
func (s *AuditService) VerifyAll(ctx context.Context, writer *StoreWriter) (AuditReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AuditService.VerifyAll")
	defer span.End()

	started := time.Now()

	if s.lookup == nil || s.mappings == nil || writer == nil {
		return AuditReport{}, fmt.Errorf("%w: audit service is not fully configured", ErrConfiguration)
	}

	all, err := s.mappings.All(ctx)
	if err != nil {
		return AuditReport{}, fmt.Errorf("list mappings: %w", err)
	}

	report := AuditReport{Total: len(all), StartedAt: started.UTC()}

	var mu sync.Mutex
	workers := pool.New().WithMaxGoroutines(s.workers)
	for _, m := range all {
		m := m
		workers.Go(func() {
			agreed, cleared, err := s.verifyOne(ctx, m, writer)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				s.logger.WarnContext(ctx, "verification failed",
					"source_id", m.SourceID, "target_id", m.TargetID, "error", err)
			case agreed:
				report.Agreed++
				if cleared {
					report.Cleared++
				}
			default:
				report.Disagreed++
				report.Flagged++
			}
		})
	}
	workers.Wait()

	report.DurationMs = time.Since(started).Milliseconds()
	s.logger.InfoContext(ctx, "verification cycle finished",
		"total", report.Total,
		"agreed", report.Agreed,
		"disagreed", report.Disagreed,
		"cleared", report.Cleared,
		"failed", report.Failed,
	)

	return report, nil
}

// verifyOne re-fetches both sides of a mapping, re-runs the normalizer and
// classifier against current names, and updates flag state. A prior flag is
// cleared only after two consecutive agreements so a transient provider
// glitch cannot flap the flag.
func (s *AuditService) verifyOne(ctx context.Context, m mapping.Mapping, writer *StoreWriter) (agreed, cleared bool, err error) {
	now := time.Now().UTC()

	disagreement := func(note string, cls Classification) (bool, bool, error) {
		result := mapping.VerificationResult{
			ID:               uuid.NewString(),
			SourceID:         m.SourceID,
			VerifiedTargetID: m.TargetID,
			Agreement:        false,
			Tier:             cls.Tier,
			Confidence:       cls.Confidence,
			Note:             note,
			CheckedAt:        now,
		}
		if err := writer.AppendVerification(ctx, result); err != nil {
			return false, false, err
		}
		if err := writer.SetFlagged(ctx, m.SourceID, true); err != nil {
			return false, false, err
		}
		return false, false, nil
	}

	source, err := s.lookup.TeamByID(ctx, entity.ProviderScoreline, m.SourceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return disagreement("source team no longer listed", Classification{Tier: mapping.TierError})
		}
		return false, false, fmt.Errorf("fetch source %s: %w", m.SourceID, err)
	}

	target, err := s.lookup.TeamByID(ctx, entity.ProviderClubdata, m.TargetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return disagreement("target team no longer listed", Classification{Tier: mapping.TierError})
		}
		return false, false, fmt.Errorf("fetch target %s: %w", m.TargetID, err)
	}

	if s.aliases != nil {
		if pinned, ok := s.aliases.PinFor(m.SourceID); ok && pinned != m.TargetID {
			return disagreement(fmt.Sprintf("alias pin now points at %s", pinned), Classification{Tier: mapping.TierError})
		}
	}

	cls := s.classifier.Classify(s.normalizer.Normalize(source.Name), s.normalizer.Normalize(target.Name))
	if cls.Tier == mapping.TierSuspicious || cls.Tier == mapping.TierError {
		return disagreement(fmt.Sprintf("recomputed tier %s", cls.Tier), cls)
	}

	result := mapping.VerificationResult{
		ID:               uuid.NewString(),
		SourceID:         m.SourceID,
		VerifiedTargetID: m.TargetID,
		Agreement:        true,
		Tier:             cls.Tier,
		Confidence:       cls.Confidence,
		CheckedAt:        now,
	}
	if err := writer.AppendVerification(ctx, result); err != nil {
		return false, false, err
	}
	if err := writer.TouchVerified(ctx, m.SourceID); err != nil {
		return false, false, err
	}

	if m.Flagged {
		streak, err := s.agreementStreak(ctx, m.SourceID)
		if err != nil {
			return true, false, err
		}
		if streak >= 2 {
			if err := writer.SetFlagged(ctx, m.SourceID, false); err != nil {
				return true, false, err
			}
			return true, true, nil
		}
	}

	return true, false, nil
}

func (s *AuditService) agreementStreak(ctx context.Context, sourceID string) (int, error) {
	if s.audit == nil {
		return 0, nil
	}

	recent, err := s.audit.Recent(ctx, sourceID, 2)
	if err != nil {
		return 0, fmt.Errorf("read audit history for %s: %w", sourceID, err)
	}

	streak := 0
	for _, result := range recent {
		if !result.Agreement {
			break
		}
		streak++
	}
	return streak, nil
}
