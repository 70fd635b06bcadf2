package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/team-reconciler/internal/domain/entity"
	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
	"github.com/riskibarqy/team-reconciler/internal/platform/id"
	"github.com/riskibarqy/team-reconciler/internal/platform/logging"
)

const (
	// ambiguityEpsilon is the confidence window inside which two same-tier
	// top candidates count as a tie. Ties are never auto-resolved.
	ambiguityEpsilon = 0.5

	defaultReconcileWorkers = 4
	maxReconcileWorkers     = 16
)

const (
	OutcomeMapped     = "mapped"
	OutcomeSkipped    = "skipped"
	OutcomeUnresolved = "unresolved"
	OutcomeFailed     = "failed"
)

// ReconcileInput drives one batch reconciliation run.
type ReconcileInput struct {
	CompetitionScope string   `validate:"required"`
	StrategyOrder    []string `validate:"omitempty,dive,required"`
	DryRun           bool
	MaxRangeProbe    int `validate:"gte=0"`
	MaxWorkers       int `validate:"gte=0,lte=64"`
	// Reverify forces matching even for sources that already hold a mapping.
	Reverify bool
}

// EntityOutcome is the per-source-team result inside a run report.
type EntityOutcome struct {
	SourceID   string       `json:"source_id"`
	SourceName string       `json:"source_name"`
	TargetID   string       `json:"target_id,omitempty"`
	TargetName string       `json:"target_name,omitempty"`
	Strategy   string       `json:"strategy,omitempty"`
	Tier       mapping.Tier `json:"tier,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
	Status     string       `json:"status"`
	Reason     string       `json:"reason,omitempty"`
}

// RunReport aggregates one reconciliation run. Per-entity failures never
// abort the run; they land here as unresolved or failed outcomes.
type RunReport struct {
	RunID       string          `json:"run_id"`
	Scope       string          `json:"scope"`
	DryRun      bool            `json:"dry_run"`
	TaskCount   int             `json:"task_count"`
	WorkerCount int             `json:"worker_count"`
	Exact       int             `json:"exact"`
	Partial     int             `json:"partial"`
	Suspicious  int             `json:"suspicious"`
	Skipped     int             `json:"skipped"`
	Unresolved  int             `json:"unresolved"`
	Failed      int             `json:"failed"`
	Entities    []EntityOutcome `json:"entities"`
	StartedAt   time.Time       `json:"started_at"`
	DurationMs  int64           `json:"duration_ms"`
}

// Resolved reports whether every entity in the run ended mapped or skipped.
func (r RunReport) Resolved() bool {
	return r.Unresolved == 0 && r.Failed == 0
}

// ReconcileConfig carries the per-competition probe ranges and worker bounds.
type ReconcileConfig struct {
	ProbeRangeByCompetition map[string]ProbeRange
	RangeProbeEnabled       bool
	MaxRangeProbe           int
	MaxWorkers              int
}

// ReconcileService orchestrates one batch run: list source teams, fan
// matching out over a bounded worker pool, and serialize every accepted
// candidate through the store writer.
type ReconcileService struct {
	lookup     LookupClient
	matcher    *Matcher
	mappings   mapping.Repository
	normalizer *Normalizer
	cfg        ReconcileConfig
	ids        id.Generator
	validator  *validator.Validate
	logger     *logging.Logger
}

func NewReconcileService(
	lookup LookupClient,
	matcher *Matcher,
	mappings mapping.Repository,
	normalizer *Normalizer,
	cfg ReconcileConfig,
	ids id.Generator,
	logger *logging.Logger,
) *ReconcileService {
	if logger == nil {
		logger = logging.Default()
	}
	if ids == nil {
		ids = id.NewRandomGenerator()
	}

	return &ReconcileService{
		lookup:     lookup,
		matcher:    matcher,
		mappings:   mappings,
		normalizer: normalizer,
		cfg:        cfg,
		ids:        ids,
		validator:  validator.New(),
		logger:     logger,
	}
}

func (s *ReconcileService) Run(ctx context.Context, input ReconcileInput, writer *StoreWriter) (RunReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReconcileService.Run")
	defer span.End()

	started := time.Now()

	if s.lookup == nil || s.matcher == nil || s.mappings == nil || writer == nil {
		return RunReport{}, fmt.Errorf("%w: reconcile service is not fully configured", ErrConfiguration)
	}
	if err := s.validator.StructCtx(ctx, input); err != nil {
		return RunReport{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	order, err := parseStrategyOrder(input.StrategyOrder)
	if err != nil {
		return RunReport{}, err
	}

	opts := s.matchOptions(input, order)

	sources, err := s.lookup.TeamsByCompetition(ctx, entity.ProviderScoreline, input.CompetitionScope)
	if err != nil {
		return RunReport{}, fmt.Errorf("list source teams for %s: %w", input.CompetitionScope, err)
	}

	pool, err := s.lookup.TeamsByCompetition(ctx, entity.ProviderClubdata, input.CompetitionScope)
	if err != nil {
		// The chain can still probe and search; a missing pool only weakens
		// the cheap strategies.
		s.logger.WarnContext(ctx, "target pool listing failed, continuing without static pool",
			"scope", input.CompetitionScope, "error", err)
		pool = nil
	}

	runID, err := s.ids.NewID()
	if err != nil {
		return RunReport{}, fmt.Errorf("generate run id: %w", err)
	}

	workerCount := normalizeWorkerCount(input.MaxWorkers, s.cfg.MaxWorkers, len(sources))
	report := RunReport{
		RunID:       runID,
		Scope:       input.CompetitionScope,
		DryRun:      input.DryRun,
		TaskCount:   len(sources),
		WorkerCount: workerCount,
		StartedAt:   started.UTC(),
		Entities:    make([]EntityOutcome, 0, len(sources)),
	}
	if len(sources) == 0 {
		report.DurationMs = time.Since(started).Milliseconds()
		return report, nil
	}

	outcomes := make(chan EntityOutcome, len(sources))

	antsPool, err := ants.NewPool(workerCount)
	if err != nil {
		return RunReport{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer antsPool.Release()

	var workers sync.WaitGroup
	for _, source := range sources {
		source := source
		workers.Add(1)
		if err := antsPool.Submit(func() {
			defer workers.Done()
			outcomes <- s.reconcileOne(ctx, source, pool, opts, input.Reverify, writer)
		}); err != nil {
			workers.Done()
			outcomes <- EntityOutcome{
				SourceID:   source.ID,
				SourceName: source.Name,
				Status:     OutcomeFailed,
				Reason:     fmt.Sprintf("submit task: %v", err),
			}
		}
	}

	workers.Wait()
	close(outcomes)

	for outcome := range outcomes {
		report.Entities = append(report.Entities, outcome)
		switch outcome.Status {
		case OutcomeMapped:
			switch outcome.Tier {
			case mapping.TierExact:
				report.Exact++
			case mapping.TierPartial:
				report.Partial++
			default:
				report.Suspicious++
			}
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeUnresolved:
			report.Unresolved++
		default:
			report.Failed++
		}
	}

	sort.SliceStable(report.Entities, func(i, j int) bool {
		return report.Entities[i].SourceID < report.Entities[j].SourceID
	})

	report.DurationMs = time.Since(started).Milliseconds()
	s.logger.InfoContext(ctx, "reconciliation run finished",
		"run_id", report.RunID,
		"scope", report.Scope,
		"dry_run", report.DryRun,
		"exact", report.Exact,
		"partial", report.Partial,
		"suspicious", report.Suspicious,
		"skipped", report.Skipped,
		"unresolved", report.Unresolved,
		"failed", report.Failed,
	)

	return report, nil
}

func (s *ReconcileService) matchOptions(input ReconcileInput, order []Strategy) MatchOptions {
	opts := MatchOptions{
		Order:             order,
		RangeProbeEnabled: s.cfg.RangeProbeEnabled,
		MaxRangeProbe:     s.cfg.MaxRangeProbe,
	}
	if input.MaxRangeProbe > 0 {
		opts.MaxRangeProbe = input.MaxRangeProbe
	}
	if r, ok := s.cfg.ProbeRangeByCompetition[input.CompetitionScope]; ok {
		opts.ProbeRange = r
	}
	return opts
}

func (s *ReconcileService) reconcileOne(
	ctx context.Context,
	source entity.Record,
	pool []entity.Record,
	opts MatchOptions,
	reverify bool,
	writer *StoreWriter,
) EntityOutcome {
	outcome := EntityOutcome{SourceID: source.ID, SourceName: source.Name}

	if !reverify {
		if existing, found, err := s.mappings.Get(ctx, source.ID); err == nil && found {
			outcome.Status = OutcomeSkipped
			outcome.TargetID = existing.TargetID
			outcome.Tier = existing.Tier
			outcome.Confidence = existing.Confidence
			outcome.Reason = "already mapped"
			return outcome
		}
	}

	candidates, err := s.matcher.FindCandidates(ctx, source, pool, opts)
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}
	if len(candidates) == 0 {
		outcome.Status = OutcomeUnresolved
		outcome.Reason = ErrLowConfidence.Error()
		return outcome
	}

	top := candidates[0]
	if isAmbiguous(candidates) {
		outcome.Status = OutcomeUnresolved
		outcome.Reason = fmt.Sprintf("%v: %s vs %s at tier %s", ErrAmbiguousMatch, top.TargetID, candidates[1].TargetID, top.Tier)
		return outcome
	}

	stored, err := writer.Upsert(ctx, mapping.Mapping{
		SourceID:   top.SourceID,
		TargetID:   top.TargetID,
		TargetName: top.TargetName,
		Tier:       top.Tier,
		Confidence: top.Confidence,
		Strategy:   string(top.Strategy),
		Provenance: mapping.ProvenanceAutomated,
	})
	if err != nil {
		if errors.Is(err, ErrPersistenceConflict) {
			outcome.Status = OutcomeUnresolved
			outcome.Reason = err.Error()
			return outcome
		}
		outcome.Status = OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}

	outcome.Status = OutcomeMapped
	outcome.TargetID = stored.TargetID
	outcome.TargetName = stored.TargetName
	outcome.Strategy = stored.Strategy
	outcome.Tier = stored.Tier
	outcome.Confidence = stored.Confidence
	return outcome
}

// isAmbiguous reports a tie between the two best candidates: same tier,
// different targets, confidence within the epsilon.
func isAmbiguous(candidates []Candidate) bool {
	if len(candidates) < 2 {
		return false
	}
	first, second := candidates[0], candidates[1]
	if first.TargetID == second.TargetID {
		return false
	}
	if first.Tier != second.Tier {
		return false
	}

	diff := first.Confidence - second.Confidence
	if diff < 0 {
		diff = -diff
	}
	return diff <= ambiguityEpsilon
}

func parseStrategyOrder(raw []string) ([]Strategy, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	out := make([]Strategy, 0, len(raw))
	for _, name := range raw {
		strategy, err := ParseStrategy(name)
		if err != nil {
			return nil, err
		}
		out = append(out, strategy)
	}
	return out, nil
}

func normalizeWorkerCount(requested, configured, taskCount int) int {
	count := requested
	if count <= 0 {
		count = configured
	}
	if count <= 0 {
		count = defaultReconcileWorkers
	}
	if count > maxReconcileWorkers {
		count = maxReconcileWorkers
	}
	if taskCount > 0 && count > taskCount {
		count = taskCount
	}
	return count
}
