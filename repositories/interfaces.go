package repositories

import (
	"context"
	"time"

	"github.com/glazeworks/actiongate/models"
	"github.com/google/uuid"
)

// QuotaStore counts capability calls per actor over a trailing window. The
// count-then-record step in the evaluator must be atomic per
// (capabilityID, actorID) key: two concurrent calls must never both observe
// "below limit" when only one slot remains. The in-memory adapter serializes
// with a mutex; the Postgres adapter serializes per key with a transactional
// advisory lock.
type QuotaStore interface {
	// RecordCall records one call at the given timestamp.
	RecordCall(ctx context.Context, capabilityID, actorID string, at time.Time) error

	// CountCalls returns how many recorded calls fall within the trailing
	// window ending at asOf.
	CountCalls(ctx context.Context, capabilityID, actorID string, asOf time.Time, window time.Duration) (int, error)

	// OldestCall returns the oldest call timestamp within the trailing
	// window, and false when the window is empty. Used to compute
	// retry-after hints for rate-limited callers.
	OldestCall(ctx context.Context, capabilityID, actorID string, asOf time.Time, window time.Duration) (time.Time, bool, error)

	// TryRecordCall atomically checks the window count against limit and
	// records the call only when below it. Returns the count observed before
	// recording and whether the call was recorded.
	TryRecordCall(ctx context.Context, capabilityID, actorID string, at time.Time, window time.Duration, limit int) (count int, recorded bool, err error)
}

// EventStore persists audit events append-only.
type EventStore interface {
	// Append appends one audit event. Events are never updated or deleted.
	Append(ctx context.Context, event *models.AuditEvent) error

	// ListRecent returns the most recent n events, newest first.
	ListRecent(ctx context.Context, n int) ([]*models.AuditEvent, error)
}

// ExemptionRepository reads the exemption list the policy snapshot is built
// from. Exemptions are authored out-of-band; this core only reads them.
type ExemptionRepository interface {
	// List returns all exemptions regardless of status.
	List(ctx context.Context) ([]models.Exemption, error)
}

// ProposalRepository stores proposals. Proposals are created once, advanced
// through the approval state machine, and never deleted.
type ProposalRepository interface {
	// Create stores a new proposal.
	Create(ctx context.Context, p *models.Proposal) error

	// GetByID retrieves a proposal by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)

	// UpdateStatus advances the proposal state machine.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ProposalStatus, approvedBy string, approvedAt *time.Time) error
}
