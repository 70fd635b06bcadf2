package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
	qb "github.com/riskibarqy/team-reconciler/internal/platform/querybuilder"
)

// AuditLogRepository is the append-only verification history backed by
// Postgres. Rows are never updated or deleted.
type AuditLogRepository struct {
	db *sqlx.DB
}

func NewAuditLogRepository(db *sqlx.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Append(ctx context.Context, result mapping.VerificationResult) error {
	row := verificationTableModel{
		PublicID:         result.ID,
		SourceID:         result.SourceID,
		VerifiedTargetID: result.VerifiedTargetID,
		Agreement:        result.Agreement,
		Tier:             string(result.Tier),
		Confidence:       result.Confidence,
		Note:             result.Note,
		CheckedAt:        result.CheckedAt,
	}

	query, args, err := qb.InsertModel("mapping_verifications", row, "", "id")
	if err != nil {
		return fmt.Errorf("build insert verification query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert verification for %s: %w", result.SourceID, err)
	}

	return nil
}

func (r *AuditLogRepository) Recent(ctx context.Context, sourceID string, limit int) ([]mapping.VerificationResult, error) {
	builder := qb.Select("*").From("mapping_verifications").
		Where(qb.Eq("source_id", sourceID)).
		OrderBy("checked_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(limit)
	}

	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select verifications query: %w", err)
	}

	var rows []verificationTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select verifications for %s: %w", sourceID, err)
	}

	out := make([]mapping.VerificationResult, 0, len(rows))
	for _, row := range rows {
		result, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}

	return out, nil
}
