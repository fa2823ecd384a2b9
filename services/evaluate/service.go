// Package evaluate implements the execution evaluator: the decision state
// machine that gates every capability execution.
package evaluate

import (
	"context"
	"time"

	"github.com/glazeworks/actiongate/models"
	"github.com/glazeworks/actiongate/repositories"
	"github.com/glazeworks/actiongate/services"
	"go.uber.org/zap"
)

// QuotaWindow is the trailing window all capability quotas are evaluated
// over. MaxCallsPerHour is defined against this window.
const QuotaWindow = time.Hour

// Service evaluates whether a proposal may execute right now.
type Service struct {
	registry models.Registry
	quota    repositories.QuotaStore
	logger   *zap.Logger
}

// NewService creates a new evaluation Service instance
func NewService(registry models.Registry, quota repositories.QuotaStore, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		quota:    quota,
		logger:   logger,
	}
}

// EvaluateExecution runs the gates in contract order: kill switch, tenant
// isolation, approval (or exemption), rate limit. The first failing gate
// determines the reason code the caller observes; the ordering is part of
// the contract, not an optimization. The policy snapshot is read-only for
// the duration of the call.
//
// An allowed decision has already consumed one quota slot: the rate-limit
// check and the call record are a single atomic store operation.
func (s *Service) EvaluateExecution(ctx context.Context, actor models.ActorContext, proposal *models.Proposal, policy models.PolicyConfig, now time.Time) (models.Decision, error) {
	// Gate 1: kill switch. Global emergency override; nothing bypasses it.
	if policy.KillSwitch.Enabled {
		s.logger.Warn("execution denied by kill switch",
			zap.String("proposal_id", proposal.ID.String()),
			zap.String("capability_id", proposal.CapabilityID),
			zap.String("actor_id", actor.ActorID))
		return models.Deny(models.ReasonKillSwitchActive), nil
	}

	// Gate 2: tenant isolation. An actor authenticated under tenant B must
	// not execute a proposal created under tenant A.
	if proposal.TenantID != "" && actor.TenantID != "" && proposal.TenantID != actor.TenantID {
		s.logger.Warn("execution denied by tenant isolation",
			zap.String("proposal_id", proposal.ID.String()),
			zap.String("proposal_tenant", proposal.TenantID),
			zap.String("actor_tenant", actor.TenantID),
			zap.String("actor_id", actor.ActorID))
		return models.Deny(models.ReasonTenantMismatch), nil
	}

	capability := s.registry.Find(proposal.CapabilityID)
	if capability == nil {
		return models.Deny(models.ReasonCapabilityUnknown), nil
	}

	// Gate 3: approval state. An active, unexpired exemption bypasses this
	// gate only; an expired exemption denies exactly like never having one.
	approvalState := models.ApprovalStateApproved
	if proposal.Status != models.ProposalApproved {
		if !s.exemptionCovers(policy.Exemptions, proposal, now) {
			return models.Deny(models.ReasonApprovalRequired), nil
		}
		approvalState = models.ApprovalStateExempt
		s.logger.Info("approval gate bypassed by exemption",
			zap.String("proposal_id", proposal.ID.String()),
			zap.String("capability_id", proposal.CapabilityID),
			zap.String("owner_uid", proposal.OwnerUID))
	}

	// Gate 4: rate limit. Applies to exempt executions too: an exemption
	// removes the approval requirement, not the abuse-prevention ceiling.
	count, recorded, err := s.quota.TryRecordCall(ctx, capability.ID, actor.ActorID, now, QuotaWindow, capability.MaxCallsPerHour)
	if err != nil {
		return models.Decision{}, services.WrapInternal("quota store failure", err)
	}
	if !recorded {
		retryAfter, err := s.retryAfterSeconds(ctx, capability.ID, actor.ActorID, now)
		if err != nil {
			return models.Decision{}, err
		}
		s.logger.Info("execution rate limited",
			zap.String("capability_id", capability.ID),
			zap.String("actor_id", actor.ActorID),
			zap.Int("count", count),
			zap.Int("max_calls_per_hour", capability.MaxCallsPerHour),
			zap.Int("retry_after_seconds", retryAfter))
		return models.Decision{
			Allowed:           false,
			ReasonCode:        models.ReasonRateLimited,
			RetryAfterSeconds: retryAfter,
		}, nil
	}

	return models.Decision{
		Allowed:       true,
		ApprovalState: approvalState,
	}, nil
}

// exemptionCovers reports whether any exemption in the snapshot covers the
// proposal's capability and owner at the evaluation instant.
func (s *Service) exemptionCovers(exemptions []models.Exemption, proposal *models.Proposal, now time.Time) bool {
	for _, e := range exemptions {
		if e.Covers(proposal.CapabilityID, proposal.OwnerUID, now) {
			return true
		}
	}
	return false
}

// retryAfterSeconds computes when the oldest call in the window expires.
// Always returns a positive value: a RATE_LIMITED decision must carry a
// usable backoff hint.
func (s *Service) retryAfterSeconds(ctx context.Context, capabilityID, actorID string, now time.Time) (int, error) {
	oldest, ok, err := s.quota.OldestCall(ctx, capabilityID, actorID, now, QuotaWindow)
	if err != nil {
		return 0, services.WrapInternal("quota store failure", err)
	}
	if !ok {
		// Limit hit with an empty window only happens for a zero ceiling;
		// tell the caller to wait out a full window.
		return int(QuotaWindow / time.Second), nil
	}

	retry := int(oldest.Add(QuotaWindow).Sub(now).Seconds())
	if retry < 1 {
		retry = 1
	}
	return retry, nil
}
