package postgres

import (
	"context"
	"fmt"

	"github.com/glazeworks/actiongate/models"
	"go.uber.org/zap"
)

// EventStore implements repositories.EventStore on an append-only
// audit_events table. Rows are never updated or deleted.
type EventStore struct {
	db     *DB
	logger *zap.Logger
}

// NewEventStore creates a new Postgres event store
func NewEventStore(db *DB, logger *zap.Logger) *EventStore {
	return &EventStore{
		db:     db,
		logger: logger,
	}
}

// Append appends one audit event.
func (s *EventStore) Append(ctx context.Context, event *models.AuditEvent) error {
	query := `
		INSERT INTO audit_events (
			id, at, action, actor_id, owner_uid, tenant_id,
			capability_id, proposal_id, input_hash, output_hash,
			decision_reason_code, approval_state
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.At,
		event.Action,
		event.ActorID,
		event.OwnerUID,
		event.TenantID,
		event.CapabilityID,
		event.ProposalID,
		event.InputHash,
		event.OutputHash,
		event.ReasonCode,
		event.ApprovalState,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	s.logger.Debug("audit event appended",
		zap.String("id", event.ID.String()),
		zap.String("action", event.Action))
	return nil
}

// ListRecent returns the most recent n events, newest first.
func (s *EventStore) ListRecent(ctx context.Context, n int) ([]*models.AuditEvent, error) {
	query := `
		SELECT id, at, action, actor_id, owner_uid, tenant_id,
		       capability_id, proposal_id, input_hash, output_hash,
		       decision_reason_code, approval_state
		FROM audit_events
		ORDER BY at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*models.AuditEvent
	for rows.Next() {
		event := &models.AuditEvent{}
		err := rows.Scan(
			&event.ID,
			&event.At,
			&event.Action,
			&event.ActorID,
			&event.OwnerUID,
			&event.TenantID,
			&event.CapabilityID,
			&event.ProposalID,
			&event.InputHash,
			&event.OutputHash,
			&event.ReasonCode,
			&event.ApprovalState,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit event rows: %w", err)
	}

	return events, nil
}
