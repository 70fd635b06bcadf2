package postgres

import (
	"time"

	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
)

type mappingTableModel struct {
	ID             int64      `db:"id"`
	SourceID       string     `db:"source_id"`
	TargetID       string     `db:"target_id"`
	TargetName     string     `db:"target_name"`
	Tier           string     `db:"tier"`
	Confidence     float64    `db:"confidence"`
	Strategy       string     `db:"strategy"`
	Provenance     string     `db:"provenance"`
	Flagged        bool       `db:"flagged"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	LastVerifiedAt *time.Time `db:"last_verified_at"`
}

func (row mappingTableModel) toDomain() (mapping.Mapping, error) {
	tier, err := mapping.ParseTier(row.Tier)
	if err != nil {
		return mapping.Mapping{}, err
	}

	return mapping.Mapping{
		SourceID:       row.SourceID,
		TargetID:       row.TargetID,
		TargetName:     row.TargetName,
		Tier:           tier,
		Confidence:     row.Confidence,
		Strategy:       row.Strategy,
		Provenance:     mapping.Provenance(row.Provenance),
		Flagged:        row.Flagged,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
		LastVerifiedAt: row.LastVerifiedAt,
	}, nil
}

type verificationTableModel struct {
	ID               int64     `db:"id"`
	PublicID         string    `db:"public_id"`
	SourceID         string    `db:"source_id"`
	VerifiedTargetID string    `db:"verified_target_id"`
	Agreement        bool      `db:"agreement"`
	Tier             string    `db:"tier"`
	Confidence       float64   `db:"confidence"`
	Note             string    `db:"note"`
	CheckedAt        time.Time `db:"checked_at"`
}

func (row verificationTableModel) toDomain() (mapping.VerificationResult, error) {
	tier, err := mapping.ParseTier(row.Tier)
	if err != nil {
		return mapping.VerificationResult{}, err
	}

	return mapping.VerificationResult{
		ID:               row.PublicID,
		SourceID:         row.SourceID,
		VerifiedTargetID: row.VerifiedTargetID,
		Agreement:        row.Agreement,
		Tier:             tier,
		Confidence:       row.Confidence,
		Note:             row.Note,
		CheckedAt:        row.CheckedAt,
	}, nil
}
