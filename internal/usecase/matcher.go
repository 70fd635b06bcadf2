package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/riskibarqy/team-reconciler/internal/domain/alias"
	"github.com/riskibarqy/team-reconciler/internal/domain/entity"
	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
	"github.com/riskibarqy/team-reconciler/internal/platform/logging"
)

// LookupClient wraps all network I/O against the two providers.
type LookupClient interface {
	TeamsByCompetition(ctx context.Context, provider entity.Provider, competition string) ([]entity.Record, error)
	SearchTeams(ctx context.Context, provider entity.Provider, query string) ([]entity.Record, error)
	TeamByID(ctx context.Context, provider entity.Provider, id string) (entity.Record, error)
	TeamFixtures(ctx context.Context, provider entity.Provider, teamID string) ([]entity.Fixture, error)
}

// Strategy names one candidate-generation approach, cheapest first.
type Strategy string

const (
	StrategyAliasPin        Strategy = "alias_pin"
	StrategyNormalizedEqual Strategy = "normalized_equal"
	StrategyContainment     Strategy = "containment"
	StrategySimilarity      Strategy = "similarity"
	StrategyCrossReference  Strategy = "cross_reference"
	StrategyRangeProbe      Strategy = "range_probe"
)

var defaultStrategyOrder = []Strategy{
	StrategyAliasPin,
	StrategyNormalizedEqual,
	StrategyContainment,
	StrategySimilarity,
	StrategyCrossReference,
	StrategyRangeProbe,
}

func ParseStrategy(raw string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range defaultStrategyOrder {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, raw)
}

// containmentSlack is the max length difference (in runes) for the
// containment strategy to consider two normalized names the same club.
const containmentSlack = 6

// similarityFloor is the minimum similarity for the similarity strategy to
// emit a candidate at all; below it the comparison is reported as noise.
const similarityFloor = 40.0

// Candidate is the ephemeral output of one strategy for one source entity.
type Candidate struct {
	SourceID   string
	TargetID   string
	TargetName string
	Strategy   Strategy
	Tier       mapping.Tier
	Confidence float64
	Distance   int
}

// ProbeRange is a known contiguous target-id range for one competition.
type ProbeRange struct {
	From int
	To   int
}

func (r ProbeRange) Empty() bool {
	return r.To < r.From || (r.From == 0 && r.To == 0)
}

// MatchOptions tunes one FindCandidates call.
type MatchOptions struct {
	Order             []Strategy
	ProbeRange        ProbeRange
	MaxRangeProbe     int
	RangeProbeEnabled bool
}

// Matcher runs the strategy chain for one source entity against a target
// pool, short-circuiting once a strategy yields an exact or partial candidate.
type Matcher struct {
	lookup     LookupClient
	aliases    alias.Table
	normalizer *Normalizer
	classifier *Classifier
	mappings   mapping.Repository
	logger     *logging.Logger
}

func NewMatcher(
	lookup LookupClient,
	aliases alias.Table,
	normalizer *Normalizer,
	classifier *Classifier,
	mappings mapping.Repository,
	logger *logging.Logger,
) *Matcher {
	if logger == nil {
		logger = logging.Default()
	}

	return &Matcher{
		lookup:     lookup,
		aliases:    aliases,
		normalizer: normalizer,
		classifier: classifier,
		mappings:   mappings,
		logger:     logger,
	}
}

// FindCandidates executes the strategy chain in order. Transient provider
// failures abandon the current strategy and move on; only context
// cancellation aborts the chain.
func (m *Matcher) FindCandidates(ctx context.Context, source entity.Record, pool []entity.Record, opts MatchOptions) ([]Candidate, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.Matcher.FindCandidates")
	defer span.End()

	if err := source.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// Pins bypass everything, including the rest of the chain.
	if targetID, ok := m.aliases.PinFor(source.ID); ok {
		return []Candidate{{
			SourceID:   source.ID,
			TargetID:   targetID,
			Strategy:   StrategyAliasPin,
			Tier:       mapping.TierExact,
			Confidence: 100,
		}}, nil
	}

	order := opts.Order
	if len(order) == 0 {
		order = defaultStrategyOrder
	}

	sourceNorm := m.normalizer.Normalize(source.Name)
	candidates := make([]Candidate, 0, 4)

	for _, strategy := range order {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var (
			found []Candidate
			err   error
		)
		switch strategy {
		case StrategyAliasPin:
			// Handled above; a pinned id never reaches the loop.
			continue
		case StrategyNormalizedEqual:
			found = m.matchNormalizedEqual(source, sourceNorm, pool)
		case StrategyContainment:
			found = m.matchContainment(source, sourceNorm, pool)
		case StrategySimilarity:
			found, err = m.matchSimilarity(ctx, source, sourceNorm, pool)
		case StrategyCrossReference:
			found, err = m.matchCrossReference(ctx, source, sourceNorm)
		case StrategyRangeProbe:
			found, err = m.matchRangeProbe(ctx, source, sourceNorm, opts)
		default:
			return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, strategy)
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.WarnContext(ctx, "matching strategy failed, continuing chain",
				"strategy", strategy,
				"source_id", source.ID,
				"error", err,
			)
			continue
		}

		candidates = append(candidates, found...)
		if hasReliable(found) {
			break
		}
	}

	sortCandidates(candidates)
	return candidates, nil
}

func hasReliable(candidates []Candidate) bool {
	for _, c := range candidates {
		if c.Tier == mapping.TierExact || c.Tier == mapping.TierPartial {
			return true
		}
	}
	return false
}

// sortCandidates orders by tier, then confidence, breaking ties by the
// shortest normalized edit distance.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Tier.Rank() != candidates[j].Tier.Rank() {
			return candidates[i].Tier.Rank() > candidates[j].Tier.Rank()
		}
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Distance < candidates[j].Distance
	})
}

func (m *Matcher) matchNormalizedEqual(source entity.Record, sourceNorm string, pool []entity.Record) []Candidate {
	var out []Candidate
	for _, target := range pool {
		if m.normalizer.Normalize(target.Name) != sourceNorm {
			continue
		}
		out = append(out, Candidate{
			SourceID:   source.ID,
			TargetID:   target.ID,
			TargetName: target.Name,
			Strategy:   StrategyNormalizedEqual,
			Tier:       mapping.TierExact,
			Confidence: 100,
		})
	}
	return out
}

func (m *Matcher) matchContainment(source entity.Record, sourceNorm string, pool []entity.Record) []Candidate {
	var out []Candidate
	for _, target := range pool {
		targetNorm := m.normalizer.Normalize(target.Name)
		if targetNorm == "" || targetNorm == sourceNorm {
			continue
		}
		if !strings.Contains(sourceNorm, targetNorm) && !strings.Contains(targetNorm, sourceNorm) {
			continue
		}

		lenDiff := len([]rune(sourceNorm)) - len([]rune(targetNorm))
		if lenDiff < 0 {
			lenDiff = -lenDiff
		}
		if lenDiff > containmentSlack {
			continue
		}

		minLen := len([]rune(sourceNorm))
		maxLen := len([]rune(targetNorm))
		if minLen > maxLen {
			minLen, maxLen = maxLen, minLen
		}

		out = append(out, Candidate{
			SourceID:   source.ID,
			TargetID:   target.ID,
			TargetName: target.Name,
			Strategy:   StrategyContainment,
			Tier:       mapping.TierPartial,
			Confidence: float64(minLen) / float64(maxLen) * 100,
			Distance:   lenDiff,
		})
	}
	return out
}

func (m *Matcher) matchSimilarity(ctx context.Context, source entity.Record, sourceNorm string, pool []entity.Record) ([]Candidate, error) {
	merged := make([]entity.Record, 0, len(pool)+4)
	merged = append(merged, pool...)

	searched, err := m.lookup.SearchTeams(ctx, entity.ProviderClubdata, source.Name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.logger.WarnContext(ctx, "target search failed, scoring static pool only",
			"source_id", source.ID, "error", err)
	} else {
		merged = append(merged, searched...)
	}

	seen := make(map[string]struct{}, len(merged))
	var out []Candidate
	for _, target := range merged {
		if _, dup := seen[target.ID]; dup {
			continue
		}
		seen[target.ID] = struct{}{}

		targetNorm := m.normalizer.Normalize(target.Name)
		cls := m.classifier.Classify(sourceNorm, targetNorm)
		if cls.Tier == mapping.TierError || cls.Confidence < similarityFloor {
			continue
		}

		out = append(out, Candidate{
			SourceID:   source.ID,
			TargetID:   target.ID,
			TargetName: target.Name,
			Strategy:   StrategySimilarity,
			Tier:       cls.Tier,
			Confidence: cls.Confidence,
			Distance:   levenshtein.ComputeDistance(sourceNorm, targetNorm),
		})
	}

	return out, nil
}

// matchCrossReference walks fixtures of the source team, follows opponents
// that are already mapped, and looks for the counterpart naming of the source
// team on the target provider's side. The resolution must be unambiguous: a
// single distinct target id, or no candidate at all.
func (m *Matcher) matchCrossReference(ctx context.Context, source entity.Record, sourceNorm string) ([]Candidate, error) {
	if m.mappings == nil {
		return nil, nil
	}

	fixtures, err := m.lookup.TeamFixtures(ctx, entity.ProviderScoreline, source.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch source fixtures: %w", err)
	}

	hits := make(map[string]entity.Record)
	for _, fixture := range fixtures {
		opponentID, _, ok := fixture.Opponent(source.ID)
		if !ok || opponentID == "" {
			continue
		}

		mapped, found, err := m.mappings.Get(ctx, opponentID)
		if err != nil {
			return nil, fmt.Errorf("read opponent mapping: %w", err)
		}
		if !found {
			continue
		}

		targetFixtures, err := m.lookup.TeamFixtures(ctx, entity.ProviderClubdata, mapped.TargetID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.WarnContext(ctx, "cross-reference fixture fetch failed, skipping opponent",
				"source_id", source.ID, "opponent_target_id", mapped.TargetID, "error", err)
			continue
		}

		for _, targetFixture := range targetFixtures {
			counterpartID, counterpartName, ok := targetFixture.Opponent(mapped.TargetID)
			if !ok || counterpartID == "" {
				continue
			}
			if m.normalizer.Normalize(counterpartName) != sourceNorm {
				continue
			}
			hits[counterpartID] = entity.Record{
				Provider: entity.ProviderClubdata,
				ID:       counterpartID,
				Name:     counterpartName,
			}
		}
	}

	// More than one distinct id means the signal contradicts itself.
	if len(hits) != 1 {
		return nil, nil
	}

	for _, target := range hits {
		cls := m.classifier.Classify(sourceNorm, m.normalizer.Normalize(target.Name))
		return []Candidate{{
			SourceID:   source.ID,
			TargetID:   target.ID,
			TargetName: target.Name,
			Strategy:   StrategyCrossReference,
			Tier:       mapping.TierPartial,
			Confidence: cls.Confidence,
		}}, nil
	}

	return nil, nil
}

// matchRangeProbe walks a configured contiguous target-id range, re-applying
// the cheap strategies to every fetched record. Last resort: slow, noisy, and
// disabled unless explicitly configured.
func (m *Matcher) matchRangeProbe(ctx context.Context, source entity.Record, sourceNorm string, opts MatchOptions) ([]Candidate, error) {
	if !opts.RangeProbeEnabled || opts.ProbeRange.Empty() {
		return nil, nil
	}

	probed := 0
	var out []Candidate
	for id := opts.ProbeRange.From; id <= opts.ProbeRange.To; id++ {
		if opts.MaxRangeProbe > 0 && probed >= opts.MaxRangeProbe {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		probed++

		target, err := m.lookup.TeamByID(ctx, entity.ProviderClubdata, strconv.Itoa(id))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return out, fmt.Errorf("probe target id %d: %w", id, err)
		}

		probePool := []entity.Record{target}
		if found := m.matchNormalizedEqual(source, sourceNorm, probePool); len(found) > 0 {
			for i := range found {
				found[i].Strategy = StrategyRangeProbe
			}
			return append(out, found...), nil
		}
		if found := m.matchContainment(source, sourceNorm, probePool); len(found) > 0 {
			for i := range found {
				found[i].Strategy = StrategyRangeProbe
			}
			out = append(out, found...)
			continue
		}

		targetNorm := m.normalizer.Normalize(target.Name)
		cls := m.classifier.Classify(sourceNorm, targetNorm)
		if cls.Tier == mapping.TierError || cls.Confidence < similarityFloor {
			continue
		}
		out = append(out, Candidate{
			SourceID:   source.ID,
			TargetID:   target.ID,
			TargetName: target.Name,
			Strategy:   StrategyRangeProbe,
			Tier:       cls.Tier,
			Confidence: cls.Confidence,
			Distance:   levenshtein.ComputeDistance(sourceNorm, targetNorm),
		})
	}

	return out, nil
}
