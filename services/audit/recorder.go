// Package audit persists tamper-evident records of execution outcomes.
package audit

import (
	"context"
	"time"

	"github.com/glazeworks/actiongate/hashing"
	"github.com/glazeworks/actiongate/models"
	"github.com/glazeworks/actiongate/repositories"
	"github.com/glazeworks/actiongate/services"
	"go.uber.org/zap"
)

// Recorder builds and appends audit events. Every event carries the
// proposal's creation-time input hash plus a freshly computed output hash,
// so a later reader can verify a given output was produced for exactly the
// input that was approved.
type Recorder struct {
	store  repositories.EventStore
	logger *zap.Logger
}

// NewRecorder creates a new Recorder instance
func NewRecorder(store repositories.EventStore, logger *zap.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger,
	}
}

// AppendExecutionAudit records a successful execution. Called only after the
// underlying operation completed; output is the operation's result payload.
func (r *Recorder) AppendExecutionAudit(ctx context.Context, actor models.ActorContext, capability *models.CapabilityDefinition, proposal *models.Proposal, output interface{}, decision models.Decision) error {
	outputHash, err := hashing.Hash(output)
	if err != nil {
		return services.NewDomainError(services.ErrorTypeValidation, "output payload is not hashable", err)
	}

	event := models.NewAuditEvent(capability.ID, models.AuditOutcomeExecuted, time.Now()).
		WithActor(actor).
		WithProposal(proposal).
		WithOutputHash(outputHash).
		WithApprovalState(decision.ApprovalState)

	if err := r.store.Append(ctx, event); err != nil {
		return services.WrapInternal("failed to append audit event", err)
	}

	r.logger.Info("execution audited",
		zap.String("action", event.Action),
		zap.String("proposal_id", proposal.ID.String()),
		zap.String("actor_id", actor.ActorID))
	return nil
}

// AppendDenialAudit records a denied execution attempt. Denials that
// represent potential trust-boundary bypasses (tenant and delegation
// mismatches especially) matter for compliance and must never be silently
// dropped.
func (r *Recorder) AppendDenialAudit(ctx context.Context, actor models.ActorContext, capabilityID string, proposal *models.Proposal, decision models.Decision) error {
	event := models.NewAuditEvent(capabilityID, models.AuditOutcomeFailed, time.Now()).
		WithActor(actor).
		WithReason(decision.ReasonCode)
	if proposal != nil {
		event.WithProposal(proposal)
	}

	if err := r.store.Append(ctx, event); err != nil {
		return services.WrapInternal("failed to append denial audit event", err)
	}

	r.logger.Warn("denial audited",
		zap.String("action", event.Action),
		zap.String("reason_code", string(decision.ReasonCode)),
		zap.String("actor_id", actor.ActorID))
	return nil
}

// ListRecent returns the most recent n audit events, newest first.
func (r *Recorder) ListRecent(ctx context.Context, n int) ([]*models.AuditEvent, error) {
	events, err := r.store.ListRecent(ctx, n)
	if err != nil {
		return nil, services.WrapInternal("failed to list audit events", err)
	}
	return events, nil
}
