package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
)

// MappingRepository is the in-memory mapping store used by tests and
// dry-run tooling. It enforces the same precedence rules as the durable
// backends.
type MappingRepository struct {
	mu         sync.RWMutex
	bySource   map[string]mapping.Mapping
	sourceByTg map[string]string
	now        func() time.Time
}

func NewMappingRepository(seed []mapping.Mapping) *MappingRepository {
	repo := &MappingRepository{
		bySource:   make(map[string]mapping.Mapping, len(seed)),
		sourceByTg: make(map[string]string, len(seed)),
		now:        time.Now,
	}
	for _, m := range seed {
		repo.bySource[m.SourceID] = m
		repo.sourceByTg[m.TargetID] = m.SourceID
	}
	return repo
}

func (r *MappingRepository) Upsert(_ context.Context, m mapping.Mapping) (mapping.Mapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing *mapping.Mapping
	if current, ok := r.bySource[m.SourceID]; ok {
		existing = &current
	}
	if err := mapping.EvaluateUpsert(existing, m); err != nil {
		return mapping.Mapping{}, err
	}

	if ownerSource, ok := r.sourceByTg[m.TargetID]; ok {
		if owner, ok := r.bySource[ownerSource]; ok {
			if err := mapping.EvaluateClaim(&owner, m); err != nil {
				return mapping.Mapping{}, err
			}
		}
	}

	now := r.now().UTC()
	if existing != nil {
		m.CreatedAt = existing.CreatedAt
		delete(r.sourceByTg, existing.TargetID)
	} else {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	r.bySource[m.SourceID] = m
	r.sourceByTg[m.TargetID] = m.SourceID
	return m, nil
}

func (r *MappingRepository) Get(_ context.Context, sourceID string) (mapping.Mapping, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.bySource[strings.TrimSpace(sourceID)]
	return m, ok, nil
}

func (r *MappingRepository) GetByTarget(_ context.Context, targetID string) (mapping.Mapping, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sourceID, ok := r.sourceByTg[strings.TrimSpace(targetID)]
	if !ok {
		return mapping.Mapping{}, false, nil
	}
	m, ok := r.bySource[sourceID]
	return m, ok, nil
}

func (r *MappingRepository) All(_ context.Context) ([]mapping.Mapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]mapping.Mapping, 0, len(r.bySource))
	for _, m := range r.bySource {
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

func (r *MappingRepository) SetFlagged(_ context.Context, sourceID string, flagged bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.bySource[sourceID]
	if !ok {
		return fmt.Errorf("mapping for source %s not found", sourceID)
	}
	m.Flagged = flagged
	m.UpdatedAt = r.now().UTC()
	r.bySource[sourceID] = m
	return nil
}

func (r *MappingRepository) TouchVerified(_ context.Context, sourceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.bySource[sourceID]
	if !ok {
		return fmt.Errorf("mapping for source %s not found", sourceID)
	}
	now := r.now().UTC()
	m.LastVerifiedAt = &now
	r.bySource[sourceID] = m
	return nil
}
