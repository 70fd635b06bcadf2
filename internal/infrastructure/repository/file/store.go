// Package file persists the mapping table as one pretty-printed JSON
// document. The format is deliberately diffable and hand-editable: manual
// provenance entries are maintained by humans directly in this file.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
)

// std-compatible config keeps map keys sorted so rewrites stay diffable.
var codec = sonic.ConfigStd

type mappingRecord struct {
	TargetID       string     `json:"target_id"`
	TargetName     string     `json:"target_name,omitempty"`
	Tier           string     `json:"tier"`
	Confidence     float64    `json:"confidence"`
	Strategy       string     `json:"strategy,omitempty"`
	Provenance     string     `json:"provenance"`
	Flagged        bool       `json:"flagged,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"`
}

type verificationRecord struct {
	ID               string    `json:"id"`
	VerifiedTargetID string    `json:"verified_target_id"`
	Agreement        bool      `json:"agreement"`
	Tier             string    `json:"tier"`
	Confidence       float64   `json:"confidence"`
	Note             string    `json:"note,omitempty"`
	CheckedAt        time.Time `json:"checked_at"`
}

type document struct {
	Mappings map[string]mappingRecord        `json:"mappings"`
	Audit    map[string][]verificationRecord `json:"audit,omitempty"`
}

// Store implements both the mapping repository and the audit log over one
// JSON file. Every mutation rewrites the file atomically via temp+rename.
type Store struct {
	mu   sync.Mutex
	path string
	doc  document
	now  func() time.Time
}

func Open(path string) (*Store, error) {
	store := &Store{
		path: path,
		doc: document{
			Mappings: make(map[string]mappingRecord),
			Audit:    make(map[string][]verificationRecord),
		},
		now: time.Now,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("read mapping file %s: %w", path, err)
	}
	if len(raw) == 0 {
		return store, nil
	}

	if err := codec.Unmarshal(raw, &store.doc); err != nil {
		return nil, fmt.Errorf("decode mapping file %s: %w", path, err)
	}
	if store.doc.Mappings == nil {
		store.doc.Mappings = make(map[string]mappingRecord)
	}
	if store.doc.Audit == nil {
		store.doc.Audit = make(map[string][]verificationRecord)
	}

	for sourceID, record := range store.doc.Mappings {
		if _, err := mapping.ParseTier(record.Tier); err != nil {
			return nil, fmt.Errorf("mapping file %s entry %s: %w", path, sourceID, err)
		}
	}

	return store, nil
}

func (s *Store) Upsert(_ context.Context, m mapping.Mapping) (mapping.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.getLocked(m.SourceID)
	if err := mapping.EvaluateUpsert(existing, m); err != nil {
		return mapping.Mapping{}, err
	}
	if owner := s.getByTargetLocked(m.TargetID); owner != nil {
		if err := mapping.EvaluateClaim(owner, m); err != nil {
			return mapping.Mapping{}, err
		}
	}

	now := s.now().UTC()
	if existing != nil {
		m.CreatedAt = existing.CreatedAt
	} else {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	s.doc.Mappings[m.SourceID] = toRecord(m)
	if err := s.flushLocked(); err != nil {
		return mapping.Mapping{}, err
	}
	return m, nil
}

func (s *Store) Get(_ context.Context, sourceID string) (mapping.Mapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m := s.getLocked(sourceID); m != nil {
		return *m, true, nil
	}
	return mapping.Mapping{}, false, nil
}

func (s *Store) GetByTarget(_ context.Context, targetID string) (mapping.Mapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m := s.getByTargetLocked(targetID); m != nil {
		return *m, true, nil
	}
	return mapping.Mapping{}, false, nil
}

func (s *Store) All(_ context.Context) ([]mapping.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]mapping.Mapping, 0, len(s.doc.Mappings))
	for sourceID := range s.doc.Mappings {
		out = append(out, fromRecord(sourceID, s.doc.Mappings[sourceID]))
	}
	sortMappings(out)
	return out, nil
}

func (s *Store) SetFlagged(_ context.Context, sourceID string, flagged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.doc.Mappings[sourceID]
	if !ok {
		return fmt.Errorf("mapping for source %s not found", sourceID)
	}
	record.Flagged = flagged
	record.UpdatedAt = s.now().UTC()
	s.doc.Mappings[sourceID] = record
	return s.flushLocked()
}

func (s *Store) TouchVerified(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.doc.Mappings[sourceID]
	if !ok {
		return fmt.Errorf("mapping for source %s not found", sourceID)
	}
	now := s.now().UTC()
	record.LastVerifiedAt = &now
	s.doc.Mappings[sourceID] = record
	return s.flushLocked()
}

func (s *Store) Append(_ context.Context, result mapping.VerificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := verificationRecord{
		ID:               result.ID,
		VerifiedTargetID: result.VerifiedTargetID,
		Agreement:        result.Agreement,
		Tier:             string(result.Tier),
		Confidence:       result.Confidence,
		Note:             result.Note,
		CheckedAt:        result.CheckedAt,
	}
	// Newest first, same order Recent serves.
	s.doc.Audit[result.SourceID] = append([]verificationRecord{entry}, s.doc.Audit[result.SourceID]...)
	return s.flushLocked()
}

func (s *Store) Recent(_ context.Context, sourceID string, limit int) ([]mapping.VerificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.doc.Audit[sourceID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}

	out := make([]mapping.VerificationResult, 0, limit)
	for _, entry := range entries[:limit] {
		out = append(out, mapping.VerificationResult{
			ID:               entry.ID,
			SourceID:         sourceID,
			VerifiedTargetID: entry.VerifiedTargetID,
			Agreement:        entry.Agreement,
			Tier:             mapping.Tier(entry.Tier),
			Confidence:       entry.Confidence,
			Note:             entry.Note,
			CheckedAt:        entry.CheckedAt,
		})
	}
	return out, nil
}

func (s *Store) getLocked(sourceID string) *mapping.Mapping {
	record, ok := s.doc.Mappings[sourceID]
	if !ok {
		return nil
	}
	m := fromRecord(sourceID, record)
	return &m
}

func (s *Store) getByTargetLocked(targetID string) *mapping.Mapping {
	for sourceID, record := range s.doc.Mappings {
		if record.TargetID == targetID {
			m := fromRecord(sourceID, record)
			return &m
		}
	}
	return nil
}

func (s *Store) flushLocked() error {
	raw, err := codec.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mapping file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create mapping dir: %w", err)
	}
	if err := os.WriteFile(tmp, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write mapping file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace mapping file: %w", err)
	}
	return nil
}

func toRecord(m mapping.Mapping) mappingRecord {
	return mappingRecord{
		TargetID:       m.TargetID,
		TargetName:     m.TargetName,
		Tier:           string(m.Tier),
		Confidence:     m.Confidence,
		Strategy:       m.Strategy,
		Provenance:     string(m.Provenance),
		Flagged:        m.Flagged,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		LastVerifiedAt: m.LastVerifiedAt,
	}
}

func fromRecord(sourceID string, r mappingRecord) mapping.Mapping {
	return mapping.Mapping{
		SourceID:       sourceID,
		TargetID:       r.TargetID,
		TargetName:     r.TargetName,
		Tier:           mapping.Tier(r.Tier),
		Confidence:     r.Confidence,
		Strategy:       r.Strategy,
		Provenance:     mapping.Provenance(r.Provenance),
		Flagged:        r.Flagged,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		LastVerifiedAt: r.LastVerifiedAt,
	}
}

func sortMappings(items []mapping.Mapping) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].SourceID < items[j].SourceID })
}
