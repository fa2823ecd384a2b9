package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditOutcome selects the action suffix for an audit event.
type AuditOutcome string

const (
	AuditOutcomeExecuted AuditOutcome = "executed"
	AuditOutcomeFailed   AuditOutcome = "failed"
	AuditOutcomeFallback AuditOutcome = "fallback"
)

// AuditEvent is an append-only record linking an actor, capability, proposal,
// and content hashes of input and output for tamper evidence.
type AuditEvent struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	At           time.Time  `json:"at" db:"at"`
	Action       string     `json:"action" db:"action"` // capability.<id>.<outcome>
	ActorID      string     `json:"actor_id" db:"actor_id"`
	OwnerUID     string     `json:"owner_uid" db:"owner_uid"`
	TenantID     string     `json:"tenant_id,omitempty" db:"tenant_id"`
	CapabilityID string     `json:"capability_id" db:"capability_id"`
	ProposalID   uuid.UUID  `json:"proposal_id" db:"proposal_id"`
	InputHash    string     `json:"input_hash" db:"input_hash"`
	OutputHash   string     `json:"output_hash,omitempty" db:"output_hash"`
	ReasonCode   ReasonCode `json:"decision_reason_code,omitempty" db:"decision_reason_code"`

	// ApprovalState records how an executed event cleared the approval gate.
	// Kept separate from ReasonCode, which stays a closed denial set.
	ApprovalState ApprovalState `json:"approval_state,omitempty" db:"approval_state"`
}

// TableName returns the table name for the AuditEvent model.
func (AuditEvent) TableName() string {
	return "audit_events"
}

// AuditAction formats the action string for a capability and outcome.
func AuditAction(capabilityID string, outcome AuditOutcome) string {
	return fmt.Sprintf("capability.%s.%s", capabilityID, outcome)
}

// NewAuditEvent creates an AuditEvent for one capability execution outcome.
func NewAuditEvent(capabilityID string, outcome AuditOutcome, at time.Time) *AuditEvent {
	return &AuditEvent{
		ID:           uuid.New(),
		At:           at,
		Action:       AuditAction(capabilityID, outcome),
		CapabilityID: capabilityID,
	}
}

// WithActor sets the acting principal.
func (e *AuditEvent) WithActor(actor ActorContext) *AuditEvent {
	e.ActorID = actor.ActorID
	e.OwnerUID = actor.OwnerUID
	e.TenantID = actor.TenantID
	return e
}

// WithProposal links the proposal and carries its creation-time input hash.
func (e *AuditEvent) WithProposal(p *Proposal) *AuditEvent {
	e.ProposalID = p.ID
	e.InputHash = p.InputHash
	return e
}

// WithOutputHash sets the content hash of the execution output.
func (e *AuditEvent) WithOutputHash(hash string) *AuditEvent {
	e.OutputHash = hash
	return e
}

// WithReason sets the decision reason code.
func (e *AuditEvent) WithReason(code ReasonCode) *AuditEvent {
	e.ReasonCode = code
	return e
}

// WithApprovalState records how the execution cleared the approval gate.
func (e *AuditEvent) WithApprovalState(state ApprovalState) *AuditEvent {
	e.ApprovalState = state
	return e
}
