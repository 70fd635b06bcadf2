package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/riskibarqy/team-reconciler/internal/domain/alias"
	"github.com/riskibarqy/team-reconciler/internal/domain/entity"
	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
	"github.com/riskibarqy/team-reconciler/internal/platform/logging"
)

type lookupStub struct {
	teamsByCompetition func(ctx context.Context, provider entity.Provider, competition string) ([]entity.Record, error)
	searchTeams        func(ctx context.Context, provider entity.Provider, query string) ([]entity.Record, error)
	teamByID           func(ctx context.Context, provider entity.Provider, id string) (entity.Record, error)
	teamFixtures       func(ctx context.Context, provider entity.Provider, teamID string) ([]entity.Fixture, error)
}

func (s *lookupStub) TeamsByCompetition(ctx context.Context, provider entity.Provider, competition string) ([]entity.Record, error) {
	if s.teamsByCompetition == nil {
		return nil, nil
	}
	return s.teamsByCompetition(ctx, provider, competition)
}

func (s *lookupStub) SearchTeams(ctx context.Context, provider entity.Provider, query string) ([]entity.Record, error) {
	if s.searchTeams == nil {
		return nil, nil
	}
	return s.searchTeams(ctx, provider, query)
}

func (s *lookupStub) TeamByID(ctx context.Context, provider entity.Provider, id string) (entity.Record, error) {
	if s.teamByID == nil {
		return entity.Record{}, ErrNotFound
	}
	return s.teamByID(ctx, provider, id)
}

func (s *lookupStub) TeamFixtures(ctx context.Context, provider entity.Provider, teamID string) ([]entity.Fixture, error) {
	if s.teamFixtures == nil {
		return nil, nil
	}
	return s.teamFixtures(ctx, provider, teamID)
}

type mappingRepoStub struct {
	bySource map[string]mapping.Mapping
}

func (s *mappingRepoStub) Upsert(ctx context.Context, m mapping.Mapping) (mapping.Mapping, error) {
	if s.bySource == nil {
		s.bySource = make(map[string]mapping.Mapping)
	}
	s.bySource[m.SourceID] = m
	return m, nil
}

func (s *mappingRepoStub) Get(ctx context.Context, sourceID string) (mapping.Mapping, bool, error) {
	m, ok := s.bySource[sourceID]
	return m, ok, nil
}

func (s *mappingRepoStub) GetByTarget(ctx context.Context, targetID string) (mapping.Mapping, bool, error) {
	for _, m := range s.bySource {
		if m.TargetID == targetID {
			return m, true, nil
		}
	}
	return mapping.Mapping{}, false, nil
}

func (s *mappingRepoStub) All(ctx context.Context) ([]mapping.Mapping, error) {
	out := make([]mapping.Mapping, 0, len(s.bySource))
	for _, m := range s.bySource {
		out = append(out, m)
	}
	return out, nil
}

func (s *mappingRepoStub) SetFlagged(ctx context.Context, sourceID string, flagged bool) error {
	m, ok := s.bySource[sourceID]
	if !ok {
		return fmt.Errorf("mapping %s not found", sourceID)
	}
	m.Flagged = flagged
	s.bySource[sourceID] = m
	return nil
}

func (s *mappingRepoStub) TouchVerified(ctx context.Context, sourceID string) error {
	return nil
}

func newTestMatcher(t *testing.T, lookup LookupClient, table alias.Table, repo mapping.Repository) *Matcher {
	t.Helper()

	normalizer := NewNormalizer(table)
	return NewMatcher(lookup, table, normalizer, NewClassifier(), repo, logging.NewNop())
}

func mustTable(t *testing.T, rules []alias.Rule, pins []alias.Pin) alias.Table {
	t.Helper()

	table, err := alias.NewTable(rules, pins)
	if err != nil {
		t.Fatalf("build alias table: %v", err)
	}
	return table
}

func TestFindCandidatesAliasPinBypassesChain(t *testing.T) {
	t.Parallel()

	table := mustTable(t, nil, []alias.Pin{{SourceID: "541", TargetID: "13379"}})
	m := newTestMatcher(t, &lookupStub{}, table, &mappingRepoStub{})

	source := entity.Record{Provider: entity.ProviderScoreline, ID: "541", Name: "Some Renamed Club"}
	pool := []entity.Record{{Provider: entity.ProviderClubdata, ID: "99999", Name: "Some Renamed Club"}}

	got, err := m.FindCandidates(context.Background(), source, pool, MatchOptions{})
	if err != nil {
		t.Fatalf("find candidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d", len(got))
	}
	if got[0].Strategy != StrategyAliasPin || got[0].TargetID != "13379" {
		t.Fatalf("unexpected candidate %+v", got[0])
	}
	if got[0].Tier != mapping.TierExact || got[0].Confidence != 100 {
		t.Fatalf("pin must be exact at full confidence, got %+v", got[0])
	}
}

func TestFindCandidatesNormalizedEquality(t *testing.T) {
	t.Parallel()

	m := newTestMatcher(t, &lookupStub{}, mustTable(t, nil, nil), &mappingRepoStub{})

	source := entity.Record{Provider: entity.ProviderScoreline, ID: "1", Name: "FC Bayern München"}
	pool := []entity.Record{
		{Provider: entity.ProviderClubdata, ID: "133602", Name: "Bayern Munchen FC"},
		{Provider: entity.ProviderClubdata, ID: "133603", Name: "Borussia Dortmund"},
	}

	got, err := m.FindCandidates(context.Background(), source, pool, MatchOptions{})
	if err != nil {
		t.Fatalf("find candidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d: %+v", len(got), got)
	}
	if got[0].Strategy != StrategyNormalizedEqual || got[0].TargetID != "133602" {
		t.Fatalf("unexpected candidate %+v", got[0])
	}
	if got[0].Tier != mapping.TierExact {
		t.Fatalf("expected exact tier, got %s", got[0].Tier)
	}
}

func TestFindCandidatesContainment(t *testing.T) {
	t.Parallel()

	m := newTestMatcher(t, &lookupStub{}, mustTable(t, nil, nil), &mappingRepoStub{})

	source := entity.Record{Provider: entity.ProviderScoreline, ID: "2", Name: "AC Milan"}
	pool := []entity.Record{{Provider: entity.ProviderClubdata, ID: "133610", Name: "Milan"}}

	got, err := m.FindCandidates(context.Background(), source, pool, MatchOptions{})
	if err != nil {
		t.Fatalf("find candidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d: %+v", len(got), got)
	}
	if got[0].Strategy != StrategyContainment || got[0].Tier != mapping.TierPartial {
		t.Fatalf("unexpected candidate %+v", got[0])
	}
	if got[0].Confidence <= 0 || got[0].Confidence >= 100 {
		t.Fatalf("containment confidence %.2f out of expected range", got[0].Confidence)
	}
}

func TestFindCandidatesSimilarityMergesSearchResults(t *testing.T) {
	t.Parallel()

	lookup := &lookupStub{
		searchTeams: func(ctx context.Context, provider entity.Provider, query string) ([]entity.Record, error) {
			if provider != entity.ProviderClubdata {
				t.Errorf("search hit wrong provider %s", provider)
			}
			return []entity.Record{{Provider: entity.ProviderClubdata, ID: "133620", Name: "Juventus FC"}}, nil
		},
	}
	m := newTestMatcher(t, lookup, mustTable(t, nil, nil), &mappingRepoStub{})

	source := entity.Record{Provider: entity.ProviderScoreline, ID: "3", Name: "Juventus"}

	got, err := m.FindCandidates(context.Background(), source, nil, MatchOptions{})
	if err != nil {
		t.Fatalf("find candidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d: %+v", len(got), got)
	}
	if got[0].Strategy != StrategySimilarity || got[0].TargetID != "133620" {
		t.Fatalf("unexpected candidate %+v", got[0])
	}
	if got[0].Tier != mapping.TierExact {
		t.Fatalf("expected exact tier for identical normalized forms, got %s", got[0].Tier)
	}
}

func TestFindCandidatesSearchFailureDegradesToPool(t *testing.T) {
	t.Parallel()

	lookup := &lookupStub{
		searchTeams: func(ctx context.Context, provider entity.Provider, query string) ([]entity.Record, error) {
			return nil, ErrTransient
		},
	}
	m := newTestMatcher(t, lookup, mustTable(t, nil, nil), &mappingRepoStub{})

	source := entity.Record{Provider: entity.ProviderScoreline, ID: "4", Name: "Valencia"}
	pool := []entity.Record{{Provider: entity.ProviderClubdata, ID: "133630", Name: "Valencia CF"}}

	got, err := m.FindCandidates(context.Background(), source, pool, MatchOptions{})
	if err != nil {
		t.Fatalf("find candidates: %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("expected pool-backed candidates despite search failure")
	}
	if got[0].TargetID != "133630" {
		t.Fatalf("unexpected candidate %+v", got[0])
	}
}

func TestFindCandidatesCrossReference(t *testing.T) {
	t.Parallel()

	repo := &mappingRepoStub{bySource: map[string]mapping.Mapping{
		"20": {SourceID: "20", TargetID: "133640", Tier: mapping.TierExact, Provenance: mapping.ProvenanceAutomated},
	}}
	lookup := &lookupStub{
		teamFixtures: func(ctx context.Context, provider entity.Provider, teamID string) ([]entity.Fixture, error) {
			switch {
			case provider == entity.ProviderScoreline && teamID == "10":
				return []entity.Fixture{{
					Provider: provider, ID: "f1",
					HomeID: "10", HomeName: "Granada",
					AwayID: "20", AwayName: "Sevilla",
				}}, nil
			case provider == entity.ProviderClubdata && teamID == "133640":
				return []entity.Fixture{{
					Provider: provider, ID: "f2",
					HomeID: "133640", HomeName: "Sevilla FC",
					AwayID: "133641", AwayName: "Granada CF",
				}}, nil
			default:
				return nil, nil
			}
		},
	}
	m := newTestMatcher(t, lookup, mustTable(t, nil, nil), repo)

	source := entity.Record{Provider: entity.ProviderScoreline, ID: "10", Name: "Granada"}

	got, err := m.FindCandidates(context.Background(), source, nil, MatchOptions{
		Order: []Strategy{StrategyCrossReference},
	})
	if err != nil {
		t.Fatalf("find candidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d: %+v", len(got), got)
	}
	if got[0].Strategy != StrategyCrossReference || got[0].TargetID != "133641" {
		t.Fatalf("unexpected candidate %+v", got[0])
	}
	if got[0].Tier != mapping.TierPartial {
		t.Fatalf("cross-reference candidates are capped at partial, got %s", got[0].Tier)
	}
}

func TestFindCandidatesCrossReferenceAmbiguousYieldsNothing(t *testing.T) {
	t.Parallel()

	repo := &mappingRepoStub{bySource: map[string]mapping.Mapping{
		"20": {SourceID: "20", TargetID: "133640", Tier: mapping.TierExact, Provenance: mapping.ProvenanceAutomated},
		"30": {SourceID: "30", TargetID: "133650", Tier: mapping.TierExact, Provenance: mapping.ProvenanceAutomated},
	}}
	lookup := &lookupStub{
		teamFixtures: func(ctx context.Context, provider entity.Provider, teamID string) ([]entity.Fixture, error) {
			switch {
			case provider == entity.ProviderScoreline && teamID == "10":
				return []entity.Fixture{
					{Provider: provider, ID: "f1", HomeID: "10", HomeName: "Granada", AwayID: "20", AwayName: "Sevilla"},
					{Provider: provider, ID: "f2", HomeID: "30", HomeName: "Betis", AwayID: "10", AwayName: "Granada"},
				}, nil
			case provider == entity.ProviderClubdata && teamID == "133640":
				return []entity.Fixture{{Provider: provider, ID: "f3", HomeID: "133640", HomeName: "Sevilla FC", AwayID: "133641", AwayName: "Granada CF"}}, nil
			case provider == entity.ProviderClubdata && teamID == "133650":
				return []entity.Fixture{{Provider: provider, ID: "f4", HomeID: "133650", HomeName: "Real Betis", AwayID: "133999", AwayName: "Granada CF"}}, nil
			default:
				return nil, nil
			}
		},
	}
	m := newTestMatcher(t, lookup, mustTable(t, nil, nil), repo)

	source := entity.Record{Provider: entity.ProviderScoreline, ID: "10", Name: "Granada"}

	got, err := m.FindCandidates(context.Background(), source, nil, MatchOptions{
		Order: []Strategy{StrategyCrossReference},
	})
	if err != nil {
		t.Fatalf("find candidates: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("contradictory fixture signal must yield no candidates, got %+v", got)
	}
}

func TestFindCandidatesRangeProbe(t *testing.T) {
	t.Parallel()

	lookup := &lookupStub{
		teamByID: func(ctx context.Context, provider entity.Provider, id string) (entity.Record, error) {
			if id == "133601" {
				return entity.Record{Provider: entity.ProviderClubdata, ID: "133601", Name: "FC Barcelona"}, nil
			}
			return entity.Record{}, ErrNotFound
		},
	}
	m := newTestMatcher(t, lookup, mustTable(t, nil, nil), &mappingRepoStub{})

	source := entity.Record{Provider: entity.ProviderScoreline, ID: "5", Name: "Barcelona FC"}
	opts := MatchOptions{
		Order:             []Strategy{StrategyRangeProbe},
		ProbeRange:        ProbeRange{From: 133600, To: 133605},
		RangeProbeEnabled: true,
	}

	got, err := m.FindCandidates(context.Background(), source, nil, opts)
	if err != nil {
		t.Fatalf("find candidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d: %+v", len(got), got)
	}
	if got[0].Strategy != StrategyRangeProbe || got[0].TargetID != "133601" {
		t.Fatalf("unexpected candidate %+v", got[0])
	}
	if got[0].Tier != mapping.TierExact {
		t.Fatalf("expected exact via normalized equality, got %s", got[0].Tier)
	}
}

func TestFindCandidatesRangeProbeRespectsCap(t *testing.T) {
	t.Parallel()

	probed := 0
	lookup := &lookupStub{
		teamByID: func(ctx context.Context, provider entity.Provider, id string) (entity.Record, error) {
			probed++
			return entity.Record{}, ErrNotFound
		},
	}
	m := newTestMatcher(t, lookup, mustTable(t, nil, nil), &mappingRepoStub{})

	source := entity.Record{Provider: entity.ProviderScoreline, ID: "6", Name: "Sunderland"}
	opts := MatchOptions{
		Order:             []Strategy{StrategyRangeProbe},
		ProbeRange:        ProbeRange{From: 100, To: 500},
		MaxRangeProbe:     3,
		RangeProbeEnabled: true,
	}

	if _, err := m.FindCandidates(context.Background(), source, nil, opts); err != nil {
		t.Fatalf("find candidates: %v", err)
	}
	if probed != 3 {
		t.Fatalf("expected 3 probes, got %d", probed)
	}
}

func TestFindCandidatesRangeProbeDisabledByDefault(t *testing.T) {
	t.Parallel()

	lookup := &lookupStub{
		teamByID: func(ctx context.Context, provider entity.Provider, id string) (entity.Record, error) {
			t.Error("range probe must not run unless enabled")
			return entity.Record{}, ErrNotFound
		},
	}
	m := newTestMatcher(t, lookup, mustTable(t, nil, nil), &mappingRepoStub{})

	source := entity.Record{Provider: entity.ProviderScoreline, ID: "7", Name: "Fulham"}
	opts := MatchOptions{
		Order:      []Strategy{StrategyRangeProbe},
		ProbeRange: ProbeRange{From: 1, To: 10},
	}

	got, err := m.FindCandidates(context.Background(), source, nil, opts)
	if err != nil {
		t.Fatalf("find candidates: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %+v", got)
	}
}

func TestSortCandidatesOrdering(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{
		{TargetID: "c", Tier: mapping.TierSuspicious, Confidence: 60},
		{TargetID: "a", Tier: mapping.TierExact, Confidence: 100},
		{TargetID: "d", Tier: mapping.TierPartial, Confidence: 80, Distance: 4},
		{TargetID: "b", Tier: mapping.TierPartial, Confidence: 80, Distance: 2},
	}
	sortCandidates(candidates)

	want := []string{"a", "b", "d", "c"}
	for i, id := range want {
		if candidates[i].TargetID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, candidates[i].TargetID)
		}
	}
}
