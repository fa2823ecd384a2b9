// Package proposal implements the proposal factory: it validates delegation
// scope, computes the creation-time input hash, and determines the initial
// approval status of a proposal.
package proposal

import (
	"context"
	"time"

	"github.com/glazeworks/actiongate/hashing"
	"github.com/glazeworks/actiongate/models"
	"github.com/glazeworks/actiongate/repositories"
	"github.com/glazeworks/actiongate/services"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateResult pairs the creation decision with the proposal. Proposal is nil
// when the decision denies; creation succeeding is distinct from a later
// execution being allowed.
type CreateResult struct {
	Decision models.Decision  `json:"decision"`
	Proposal *models.Proposal `json:"proposal"`
}

// Service is the proposal factory and the owner of proposal state
// transitions.
type Service struct {
	registry models.Registry
	repo     repositories.ProposalRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates a new proposal Service instance
func NewService(registry models.Registry, repo repositories.ProposalRepository, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		repo:     repo,
		validate: validator.New(),
		logger:   logger,
	}
}

// Create registers intent to execute a capability. The delegation-scope gate
// applies to agent actors only: the scope system exists to bound what an
// autonomous agent may request on an owner's behalf, not to restrict staff or
// clients at proposal time.
func (s *Service) Create(ctx context.Context, actor models.ActorContext, req models.ProposalRequest, now time.Time) (*CreateResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid proposal request", err)
	}

	capability := s.registry.Find(req.CapabilityID)
	if capability == nil {
		s.logger.Warn("proposal for unknown capability",
			zap.String("capability_id", req.CapabilityID),
			zap.String("actor_id", actor.ActorID))
		return &CreateResult{Decision: models.Deny(models.ReasonCapabilityUnknown)}, nil
	}

	if actor.ActorType == models.ActorTypeAgent && !actor.HasScope(models.ExecuteScope(capability.ID)) {
		s.logger.Warn("agent missing delegation scope",
			zap.String("capability_id", capability.ID),
			zap.String("actor_id", actor.ActorID),
			zap.String("owner_uid", actor.OwnerUID))
		return &CreateResult{Decision: models.Deny(models.ReasonDelegationScopeMissing)}, nil
	}

	inputHash, err := hashing.Hash(req.Input)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "input payload is not hashable", err)
	}

	status := models.ProposalApproved
	if capability.RequiresApproval {
		status = models.ProposalPendingApproval
	}

	p := &models.Proposal{
		ID:              uuid.New(),
		CapabilityID:    capability.ID,
		RequestedBy:     req.RequestedBy,
		OwnerUID:        actor.OwnerUID,
		TenantID:        actor.TenantID,
		Rationale:       req.Rationale,
		PreviewSummary:  req.PreviewSummary,
		ExpectedEffects: req.ExpectedEffects,
		Input:           req.Input,
		InputHash:       inputHash,
		Status:          status,
		CreatedAt:       now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, services.WrapInternal("failed to store proposal", err)
	}

	s.logger.Info("proposal created",
		zap.String("proposal_id", p.ID.String()),
		zap.String("capability_id", p.CapabilityID),
		zap.String("status", string(p.Status)),
		zap.String("actor_id", actor.ActorID))

	return &CreateResult{
		Decision: models.Decision{Allowed: true},
		Proposal: p,
	}, nil
}

// Get retrieves a proposal by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeNotFound, "proposal not found", err)
	}
	return p, nil
}

// Approve transitions a pending proposal to approved. Only the approval
// workflow calls this; the evaluator never mutates proposal state.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, approvedBy string, now time.Time) error {
	return s.transition(ctx, id, models.ProposalApproved, approvedBy, now)
}

// Reject transitions a pending proposal to rejected.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, rejectedBy string, now time.Time) error {
	return s.transition(ctx, id, models.ProposalRejected, rejectedBy, now)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to models.ProposalStatus, by string, now time.Time) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return services.NewDomainError(services.ErrorTypeNotFound, "proposal not found", err)
	}

	// Only pending proposals may be resolved; resolved proposals are final.
	if p.Status != models.ProposalPendingApproval {
		return services.NewDomainError(services.ErrorTypeConflict, "proposal is not pending approval", nil)
	}

	approvedAt := &now
	approvedBy := by
	if to == models.ProposalRejected {
		approvedAt = nil
		approvedBy = ""
	}

	if err := s.repo.UpdateStatus(ctx, id, to, approvedBy, approvedAt); err != nil {
		return services.WrapInternal("failed to update proposal status", err)
	}

	s.logger.Info("proposal status updated",
		zap.String("proposal_id", id.String()),
		zap.String("status", string(to)),
		zap.String("resolved_by", by))
	return nil
}
