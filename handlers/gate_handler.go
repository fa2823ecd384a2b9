package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/glazeworks/actiongate/middleware"
	"github.com/glazeworks/actiongate/models"
	"github.com/glazeworks/actiongate/services"
	"github.com/glazeworks/actiongate/services/audit"
	"github.com/glazeworks/actiongate/services/evaluate"
	"github.com/glazeworks/actiongate/services/policy"
	"github.com/glazeworks/actiongate/services/proposal"
	"github.com/glazeworks/actiongate/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GateHandler handles proposal and execution HTTP requests
type GateHandler struct {
	registry  models.Registry
	proposals *proposal.Service
	evaluator *evaluate.Service
	policies  *policy.Service
	recorder  *audit.Recorder
	logger    *zap.Logger
}

// NewGateHandler creates a new GateHandler
func NewGateHandler(registry models.Registry, proposals *proposal.Service, evaluator *evaluate.Service, policies *policy.Service, recorder *audit.Recorder, logger *zap.Logger) *GateHandler {
	return &GateHandler{
		registry:  registry,
		proposals: proposals,
		evaluator: evaluator,
		policies:  policies,
		recorder:  recorder,
		logger:    logger,
	}
}

// HandleCreateProposal handles POST /api/v1/proposals
func (h *GateHandler) HandleCreateProposal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	var req models.ProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return
	}

	result, err := h.proposals.Create(ctx, *actor, req, time.Now())
	if err != nil {
		if services.IsValidationError(err) {
			_ = utils.WriteBadRequest(w, err.Error())
			return
		}
		h.logger.Error("failed to create proposal", zap.Error(err))
		_ = utils.WriteInternalError(w, "")
		return
	}

	status := http.StatusCreated
	if !result.Decision.Allowed {
		// Scope and registry denials are compliance-relevant; record them.
		if result.Decision.ReasonCode == models.ReasonDelegationScopeMissing {
			if err := h.recorder.AppendDenialAudit(ctx, *actor, req.CapabilityID, nil, result.Decision); err != nil {
				h.logger.Error("failed to audit proposal denial", zap.Error(err))
			}
		}
		status = http.StatusForbidden
	}
	_ = utils.WriteJSON(w, status, result)
}

// HandleGetProposal handles GET /api/v1/proposals/{id}
func (h *GateHandler) HandleGetProposal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid proposal ID")
		return
	}

	p, err := h.proposals.Get(ctx, id)
	if err != nil {
		_ = utils.WriteNotFound(w, "Proposal not found")
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, p)
}

// ResolveProposalRequest is the body for approve/reject requests
type ResolveProposalRequest struct {
	Comment string `json:"comment,omitempty"`
}

// HandleApproveProposal handles POST /api/v1/proposals/{id}/approve.
// Approval is a staff action; agents cannot approve their own proposals.
func (h *GateHandler) HandleApproveProposal(w http.ResponseWriter, r *http.Request) {
	h.resolveProposal(w, r, models.ProposalApproved)
}

// HandleRejectProposal handles POST /api/v1/proposals/{id}/reject
func (h *GateHandler) HandleRejectProposal(w http.ResponseWriter, r *http.Request) {
	h.resolveProposal(w, r, models.ProposalRejected)
}

func (h *GateHandler) resolveProposal(w http.ResponseWriter, r *http.Request, to models.ProposalStatus) {
	ctx := r.Context()
	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}
	if actor.ActorType != models.ActorTypeStaff {
		_ = utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse{
			Error:   "forbidden",
			Message: "Only staff may resolve proposals",
		})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid proposal ID")
		return
	}

	p, err := h.proposals.Get(ctx, id)
	if err != nil {
		_ = utils.WriteNotFound(w, "Proposal not found")
		return
	}
	if tenantMismatch(p, actor) {
		_ = utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse{
			Error:   "forbidden",
			Message: "Proposal belongs to another tenant",
		})
		return
	}

	// The body is optional; a comment is recorded in the log only.
	var req ResolveProposalRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if to == models.ProposalApproved {
		err = h.proposals.Approve(ctx, id, actor.ActorID, time.Now())
	} else {
		err = h.proposals.Reject(ctx, id, actor.ActorID, time.Now())
	}
	if err != nil {
		switch {
		case services.IsNotFoundError(err):
			_ = utils.WriteNotFound(w, "Proposal not found")
		case services.IsConflictError(err):
			_ = utils.WriteConflict(w, "Proposal is not pending approval")
		default:
			h.logger.Error("failed to resolve proposal", zap.Error(err))
			_ = utils.WriteInternalError(w, "")
		}
		return
	}

	if req.Comment != "" {
		h.logger.Info("proposal resolution comment",
			zap.String("proposal_id", id.String()),
			zap.String("resolved_by", actor.ActorID),
			zap.String("comment", req.Comment))
	}

	p, err = h.proposals.Get(ctx, id)
	if err != nil {
		_ = utils.WriteInternalError(w, "")
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, p)
}

// tenantMismatch mirrors the evaluator's tenant isolation gate for the
// handler-level paths that touch a proposal outside of evaluation.
func tenantMismatch(p *models.Proposal, actor *models.ActorContext) bool {
	return p.TenantID != "" && actor.TenantID != "" && p.TenantID != actor.TenantID
}

// HandleEvaluateExecution handles POST /api/v1/proposals/{id}/evaluate.
// The gate only decides; the caller performs the underlying operation after
// an allowed decision and then reports the output for auditing.
func (h *GateHandler) HandleEvaluateExecution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid proposal ID")
		return
	}

	p, err := h.proposals.Get(ctx, id)
	if err != nil {
		_ = utils.WriteNotFound(w, "Proposal not found")
		return
	}

	snapshot, err := h.policies.Snapshot(ctx)
	if err != nil {
		h.logger.Error("failed to load policy snapshot", zap.Error(err))
		_ = utils.WriteInternalError(w, "")
		return
	}

	decision, err := h.evaluator.EvaluateExecution(ctx, *actor, p, snapshot, time.Now())
	if err != nil {
		h.logger.Error("evaluation failed", zap.Error(err))
		_ = utils.WriteInternalError(w, "")
		return
	}

	if !decision.Allowed && decision.ReasonCode == models.ReasonTenantMismatch {
		// Possible trust-boundary bypass attempt; always audited.
		if err := h.recorder.AppendDenialAudit(ctx, *actor, p.CapabilityID, p, decision); err != nil {
			h.logger.Error("failed to audit tenant mismatch denial", zap.Error(err))
		}
	}

	status := http.StatusOK
	if !decision.Allowed {
		status = http.StatusForbidden
		if decision.ReasonCode == models.ReasonRateLimited {
			status = http.StatusTooManyRequests
			w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds))
		}
	}
	_ = utils.WriteJSON(w, status, decision)
}

// ReportExecutionRequest carries the output of a completed execution
type ReportExecutionRequest struct {
	Output json.RawMessage `json:"output"`
}

// HandleReportExecution handles POST /api/v1/proposals/{id}/executions.
// Called by the executor after performing the allowed operation.
func (h *GateHandler) HandleReportExecution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid proposal ID")
		return
	}

	p, err := h.proposals.Get(ctx, id)
	if err != nil {
		_ = utils.WriteNotFound(w, "Proposal not found")
		return
	}

	capability := h.registry.Find(p.CapabilityID)
	if capability == nil {
		_ = utils.WriteNotFound(w, "Capability not found")
		return
	}

	// Same tenant isolation gate the evaluator applies: a cross-tenant report
	// is a trust-boundary bypass attempt and is always audited.
	if tenantMismatch(p, actor) {
		if err := h.recorder.AppendDenialAudit(ctx, *actor, p.CapabilityID, p, models.Deny(models.ReasonTenantMismatch)); err != nil {
			h.logger.Error("failed to audit tenant mismatch denial", zap.Error(err))
		}
		_ = utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse{
			Error:   "forbidden",
			Message: "Proposal belongs to another tenant",
		})
		return
	}

	var req ReportExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return
	}

	// The approval state is derived here, never taken from the caller: an
	// executor reporting an outcome cannot claim a clearance it did not have.
	state := models.ApprovalStateApproved
	if p.Status != models.ProposalApproved {
		snapshot, err := h.policies.Snapshot(ctx)
		if err != nil {
			h.logger.Error("failed to load policy snapshot", zap.Error(err))
			_ = utils.WriteInternalError(w, "")
			return
		}
		covered := false
		now := time.Now()
		for _, e := range snapshot.Exemptions {
			if e.Covers(p.CapabilityID, p.OwnerUID, now) {
				covered = true
				break
			}
		}
		if !covered {
			_ = utils.WriteConflict(w, "Proposal is neither approved nor exempt")
			return
		}
		state = models.ApprovalStateExempt
	}

	decision := models.Decision{Allowed: true, ApprovalState: state}
	if err := h.recorder.AppendExecutionAudit(ctx, *actor, capability, p, req.Output, decision); err != nil {
		h.logger.Error("failed to append execution audit", zap.Error(err))
		_ = utils.WriteInternalError(w, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListRecentAudit handles GET /api/v1/audit/recent
func (h *GateHandler) HandleListRecentAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n := 50
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			_ = utils.WriteBadRequest(w, "n must be between 1 and 500")
			return
		}
		n = parsed
	}

	events, err := h.recorder.ListRecent(ctx, n)
	if err != nil {
		h.logger.Error("failed to list audit events", zap.Error(err))
		_ = utils.WriteInternalError(w, "")
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, events)
}

// KillSwitchRequest is the body for kill switch changes
type KillSwitchRequest struct {
	Enabled bool   `json:"enabled"`
	Note    string `json:"note,omitempty"`
}

// HandleSetKillSwitch handles POST /api/v1/killswitch
func (h *GateHandler) HandleSetKillSwitch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}
	if actor.ActorType != models.ActorTypeStaff {
		_ = utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse{
			Error:   "forbidden",
			Message: "Only staff may change the kill switch",
		})
		return
	}

	var req KillSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return
	}

	h.policies.SetKillSwitch(req.Enabled, actor.ActorID, req.Note)
	_ = utils.WriteJSON(w, http.StatusOK, h.policies.KillSwitch())
}

// HandleListCapabilities handles GET /api/v1/capabilities
func (h *GateHandler) HandleListCapabilities(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, h.registry)
}
