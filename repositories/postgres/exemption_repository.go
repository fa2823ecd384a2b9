package postgres

import (
	"context"
	"fmt"

	"github.com/glazeworks/actiongate/models"
	"go.uber.org/zap"
)

// ExemptionRepository implements repositories.ExemptionRepository on an
// exemptions table. Exemptions are authored by policy administration tooling;
// the gate only reads them.
type ExemptionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewExemptionRepository creates a new Postgres exemption repository
func NewExemptionRepository(db *DB, logger *zap.Logger) *ExemptionRepository {
	return &ExemptionRepository{
		db:     db,
		logger: logger,
	}
}

// List returns all exemptions regardless of status.
func (r *ExemptionRepository) List(ctx context.Context) ([]models.Exemption, error) {
	query := `
		SELECT id, capability_id, owner_uid, justification, approved_by,
		       created_at, expires_at, status
		FROM exemptions
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query exemptions: %w", err)
	}
	defer rows.Close()

	var exemptions []models.Exemption
	for rows.Next() {
		var e models.Exemption
		err := rows.Scan(
			&e.ID,
			&e.CapabilityID,
			&e.OwnerUID,
			&e.Justification,
			&e.ApprovedBy,
			&e.CreatedAt,
			&e.ExpiresAt,
			&e.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exemption: %w", err)
		}
		exemptions = append(exemptions, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exemption rows: %w", err)
	}

	return exemptions, nil
}
