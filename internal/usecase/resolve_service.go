package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
	"github.com/riskibarqy/team-reconciler/internal/platform/cache"
)

// ResolveService is the thin read path every UI/content collaborator uses:
// source id in, target id out. Flagged mappings still resolve (fail open).
type ResolveService struct {
	mappings mapping.Repository
	cache    *cache.Store
}

func NewResolveService(mappings mapping.Repository, store *cache.Store) *ResolveService {
	return &ResolveService{
		mappings: mappings,
		cache:    store,
	}
}

// Resolve returns the mapped target id for a source id, or ok=false when the
// team is unmapped. Results are cached read-through when a cache is wired.
func (s *ResolveService) Resolve(ctx context.Context, sourceID string) (string, bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ResolveService.Resolve")
	defer span.End()

	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return "", false, fmt.Errorf("%w: source id is required", ErrInvalidInput)
	}

	key := "resolve:" + sourceID
	if s.cache != nil {
		if targetID, ok := s.cache.Get(ctx, key); ok {
			return targetID, targetID != "", nil
		}
	}

	m, found, err := s.mappings.Get(ctx, sourceID)
	if err != nil {
		return "", false, fmt.Errorf("resolve %s: %w", sourceID, err)
	}
	if !found {
		return "", false, nil
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, m.TargetID)
	}

	return m.TargetID, true, nil
}
