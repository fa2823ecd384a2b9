package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProposalStatus is the approval state machine value for a proposal.
type ProposalStatus string

const (
	ProposalPendingApproval ProposalStatus = "pending_approval"
	ProposalApproved        ProposalStatus = "approved"
	ProposalRejected        ProposalStatus = "rejected"
)

// ProposalRequest is the raw intent a caller registers before execution.
type ProposalRequest struct {
	CapabilityID    string          `json:"capability_id" validate:"required"`
	Rationale       string          `json:"rationale" validate:"required"`
	PreviewSummary  string          `json:"preview_summary"`
	ExpectedEffects []string        `json:"expected_effects"`
	Input           json.RawMessage `json:"input"`
	RequestedBy     string          `json:"requested_by" validate:"required"`
}

// Proposal is a recorded intent to execute one capability with specific
// input. Created once, advanced only by the approval workflow, never deleted:
// it is the audit anchor for any later execution.
type Proposal struct {
	ID           uuid.UUID `json:"id" db:"id"`
	CapabilityID string    `json:"capability_id" db:"capability_id"`
	RequestedBy  string    `json:"requested_by" db:"requested_by"`
	OwnerUID     string    `json:"owner_uid" db:"owner_uid"`
	TenantID     string    `json:"tenant_id,omitempty" db:"tenant_id"`

	Rationale       string          `json:"rationale" db:"rationale"`
	PreviewSummary  string          `json:"preview_summary" db:"preview_summary"`
	ExpectedEffects []string        `json:"expected_effects" db:"expected_effects"`
	Input           json.RawMessage `json:"input" db:"input"`

	// InputHash is computed at creation and never recomputed. A later input
	// that does not hash to this value is a distinct, invalid attempt.
	InputHash string `json:"input_hash" db:"input_hash"`

	Status     ProposalStatus `json:"status" db:"status"`
	ApprovedBy string         `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt *time.Time     `json:"approved_at,omitempty" db:"approved_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
