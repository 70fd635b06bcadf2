package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
	qb "github.com/riskibarqy/team-reconciler/internal/platform/querybuilder"
)

// MappingRepository persists mappings in Postgres. Writes run inside a
// transaction so the precedence checks see a consistent view of both the
// source row and the target owner.
type MappingRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewMappingRepository(db *sqlx.DB) *MappingRepository {
	return &MappingRepository{db: db, now: time.Now}
}

func (r *MappingRepository) Upsert(ctx context.Context, m mapping.Mapping) (mapping.Mapping, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapping.Mapping{}, fmt.Errorf("begin upsert mapping tx: %w", err)
	}

	stored, err := r.upsertInTx(ctx, tx, m)
	if err != nil {
		_ = tx.Rollback()
		return mapping.Mapping{}, err
	}

	if err := tx.Commit(); err != nil {
		return mapping.Mapping{}, fmt.Errorf("commit upsert mapping tx: %w", err)
	}

	return stored, nil
}

func (r *MappingRepository) upsertInTx(ctx context.Context, tx *sqlx.Tx, m mapping.Mapping) (mapping.Mapping, error) {
	existing, hasExisting, err := selectMappingForUpdate(ctx, tx, qb.Eq("source_id", m.SourceID))
	if err != nil {
		return mapping.Mapping{}, err
	}

	var existingPtr *mapping.Mapping
	if hasExisting {
		existingPtr = &existing
	}
	if err := mapping.EvaluateUpsert(existingPtr, m); err != nil {
		return mapping.Mapping{}, err
	}

	owner, hasOwner, err := selectMappingForUpdate(ctx, tx, qb.Eq("target_id", m.TargetID))
	if err != nil {
		return mapping.Mapping{}, err
	}

	var ownerPtr *mapping.Mapping
	if hasOwner {
		ownerPtr = &owner
	}
	if err := mapping.EvaluateClaim(ownerPtr, m); err != nil {
		return mapping.Mapping{}, err
	}

	now := r.now().UTC()
	m.UpdatedAt = now
	if hasExisting {
		m.CreatedAt = existing.CreatedAt
		m.LastVerifiedAt = existing.LastVerifiedAt
	} else {
		m.CreatedAt = now
	}

	row := mappingTableModel{
		SourceID:       m.SourceID,
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

	query, args, err := qb.InsertModel("mappings", row, `ON CONFLICT (source_id) DO UPDATE SET
		target_id = EXCLUDED.target_id,
		target_name = EXCLUDED.target_name,
		tier = EXCLUDED.tier,
		confidence = EXCLUDED.confidence,
		strategy = EXCLUDED.strategy,
		provenance = EXCLUDED.provenance,
		flagged = EXCLUDED.flagged,
		updated_at = EXCLUDED.updated_at`, "id")
	if err != nil {
		return mapping.Mapping{}, fmt.Errorf("build upsert mapping query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return mapping.Mapping{}, fmt.Errorf("upsert mapping %s: %w", m.SourceID, err)
	}

	return m, nil
}

func selectMappingForUpdate(ctx context.Context, tx *sqlx.Tx, cond qb.Condition) (mapping.Mapping, bool, error) {
	query, args, err := qb.Select("*").From("mappings").
		Where(cond).
		ToSQL()
	if err != nil {
		return mapping.Mapping{}, false, fmt.Errorf("build select mapping query: %w", err)
	}
	query += " FOR UPDATE"

	var row mappingTableModel
	if err := tx.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return mapping.Mapping{}, false, nil
		}
		return mapping.Mapping{}, false, fmt.Errorf("select mapping: %w", err)
	}

	m, err := row.toDomain()
	if err != nil {
		return mapping.Mapping{}, false, err
	}

	return m, true, nil
}

func (r *MappingRepository) Get(ctx context.Context, sourceID string) (mapping.Mapping, bool, error) {
	return r.getBy(ctx, qb.Eq("source_id", sourceID))
}

func (r *MappingRepository) GetByTarget(ctx context.Context, targetID string) (mapping.Mapping, bool, error) {
	return r.getBy(ctx, qb.Eq("target_id", targetID))
}

func (r *MappingRepository) getBy(ctx context.Context, cond qb.Condition) (mapping.Mapping, bool, error) {
	query, args, err := qb.Select("*").From("mappings").
		Where(cond).
		ToSQL()
	if err != nil {
		return mapping.Mapping{}, false, fmt.Errorf("build select mapping query: %w", err)
	}

	var row mappingTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return mapping.Mapping{}, false, nil
		}
		return mapping.Mapping{}, false, fmt.Errorf("select mapping: %w", err)
	}

	m, err := row.toDomain()
	if err != nil {
		return mapping.Mapping{}, false, err
	}

	return m, true, nil
}

func (r *MappingRepository) All(ctx context.Context) ([]mapping.Mapping, error) {
	query, args, err := qb.Select("*").From("mappings").
		OrderBy("source_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select mappings query: %w", err)
	}

	var rows []mappingTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select mappings: %w", err)
	}

	out := make([]mapping.Mapping, 0, len(rows))
	for _, row := range rows {
		m, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	return out, nil
}

func (r *MappingRepository) SetFlagged(ctx context.Context, sourceID string, flagged bool) error {
	query, args, err := qb.Update("mappings").
		Set("flagged", flagged).
		Set("updated_at", r.now().UTC()).
		Where(qb.Eq("source_id", sourceID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build flag mapping query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("flag mapping %s: %w", sourceID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("mapping %s not found", sourceID)
	}

	return nil
}

func (r *MappingRepository) TouchVerified(ctx context.Context, sourceID string) error {
	now := r.now().UTC()
	query, args, err := qb.Update("mappings").
		Set("last_verified_at", now).
		Set("updated_at", now).
		Where(qb.Eq("source_id", sourceID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build touch mapping query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("touch mapping %s: %w", sourceID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("mapping %s not found", sourceID)
	}

	return nil
}
