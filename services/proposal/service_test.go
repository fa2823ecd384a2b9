package proposal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/glazeworks/actiongate/models"
	"github.com/glazeworks/actiongate/repositories/memory"
	"github.com/glazeworks/actiongate/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testService(t *testing.T) (*Service, *memory.ProposalRepository) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	repo := memory.NewProposalRepository()
	return NewService(models.DefaultRegistry(), repo, logger), repo
}

func validRequest() models.ProposalRequest {
	return models.ProposalRequest{
		CapabilityID:    "firestore.batch.close",
		Rationale:       "close out the finished bisque batch",
		PreviewSummary:  "batch 2026-08 will be marked closed",
		ExpectedEffects: []string{"batch.status=closed"},
		Input:           json.RawMessage(`{"batchId":"2026-08","confirm":true}`),
		RequestedBy:     "agent-kiln",
	}
}

func agentActor(scopes ...string) models.ActorContext {
	return models.ActorContext{
		ActorType:       models.ActorTypeAgent,
		ActorID:         "agent-kiln",
		OwnerUID:        "owner-1",
		EffectiveScopes: scopes,
	}
}

func TestCreate_AgentWithScope(t *testing.T) {
	svc, _ := testService(t)
	now := time.Now()

	actor := agentActor("capability:firestore.batch.close:execute")
	result, err := svc.Create(context.Background(), actor, validRequest(), now)

	require.NoError(t, err)
	assert.True(t, result.Decision.Allowed)
	require.NotNil(t, result.Proposal)
	assert.Equal(t, "firestore.batch.close", result.Proposal.CapabilityID)
	assert.Equal(t, "owner-1", result.Proposal.OwnerUID)
	assert.Equal(t, models.ProposalPendingApproval, result.Proposal.Status)
	assert.NotEmpty(t, result.Proposal.InputHash)
	assert.Equal(t, now, result.Proposal.CreatedAt)
}

func TestCreate_AgentWithoutScope(t *testing.T) {
	svc, repo := testService(t)

	t.Run("no scopes at all", func(t *testing.T) {
		result, err := svc.Create(context.Background(), agentActor(), validRequest(), time.Now())
		require.NoError(t, err)
		assert.False(t, result.Decision.Allowed)
		assert.Equal(t, models.ReasonDelegationScopeMissing, result.Decision.ReasonCode)
		assert.Nil(t, result.Proposal)
	})

	t.Run("scope for a different capability", func(t *testing.T) {
		actor := agentActor("capability:hubitat.device.status:execute")
		result, err := svc.Create(context.Background(), actor, validRequest(), time.Now())
		require.NoError(t, err)
		assert.Equal(t, models.ReasonDelegationScopeMissing, result.Decision.ReasonCode)
	})

	assert.Zero(t, repo.Len())
}

func TestCreate_ScopeGateSkippedForHumans(t *testing.T) {
	svc, _ := testService(t)

	for _, actorType := range []models.ActorType{models.ActorTypeStaff, models.ActorTypeClient} {
		t.Run(string(actorType), func(t *testing.T) {
			actor := models.ActorContext{
				ActorType: actorType,
				ActorID:   "human-1",
				OwnerUID:  "owner-1",
			}
			result, err := svc.Create(context.Background(), actor, validRequest(), time.Now())
			require.NoError(t, err)
			assert.True(t, result.Decision.Allowed)
		})
	}
}

func TestCreate_UnknownCapability(t *testing.T) {
	svc, _ := testService(t)

	req := validRequest()
	req.CapabilityID = "firestore.batch.reopen"

	result, err := svc.Create(context.Background(), agentActor(), req, time.Now())
	require.NoError(t, err)
	assert.False(t, result.Decision.Allowed)
	assert.Equal(t, models.ReasonCapabilityUnknown, result.Decision.ReasonCode)
	assert.Nil(t, result.Proposal)
}

func TestCreate_ValidationFailures(t *testing.T) {
	svc, _ := testService(t)

	cases := []struct {
		name   string
		mutate func(*models.ProposalRequest)
	}{
		{"missing capability id", func(r *models.ProposalRequest) { r.CapabilityID = "" }},
		{"missing rationale", func(r *models.ProposalRequest) { r.Rationale = "" }},
		{"missing requested by", func(r *models.ProposalRequest) { r.RequestedBy = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)

			result, err := svc.Create(context.Background(), agentActor(), req, time.Now())
			require.Error(t, err)
			assert.True(t, services.IsValidationError(err))
			assert.Nil(t, result)
		})
	}
}

func TestCreate_StatusFollowsApprovalRequirement(t *testing.T) {
	svc, _ := testService(t)

	t.Run("approval-gated capability starts pending", func(t *testing.T) {
		actor := agentActor("capability:firestore.batch.close:execute")
		result, err := svc.Create(context.Background(), actor, validRequest(), time.Now())
		require.NoError(t, err)
		assert.Equal(t, models.ProposalPendingApproval, result.Proposal.Status)
	})

	t.Run("auto-approved capability starts approved", func(t *testing.T) {
		req := validRequest()
		req.CapabilityID = "hubitat.device.status"
		actor := agentActor("capability:hubitat.device.status:execute")

		result, err := svc.Create(context.Background(), actor, req, time.Now())
		require.NoError(t, err)
		assert.Equal(t, models.ProposalApproved, result.Proposal.Status)
	})
}

func TestCreate_InputHashIsStable(t *testing.T) {
	svc, _ := testService(t)
	actor := agentActor("capability:firestore.batch.close:execute")

	req := validRequest()
	req.Input = json.RawMessage(`{"confirm":true,"batchId":"2026-08"}`)

	a, err := svc.Create(context.Background(), actor, validRequest(), time.Now())
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), actor, req, time.Now())
	require.NoError(t, err)

	// Key order does not change the payload identity.
	assert.Equal(t, a.Proposal.InputHash, b.Proposal.InputHash)

	req.Input = json.RawMessage(`{"batchId":"2026-09","confirm":true}`)
	c, err := svc.Create(context.Background(), actor, req, time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, a.Proposal.InputHash, c.Proposal.InputHash)
}

func TestGet(t *testing.T) {
	svc, _ := testService(t)
	actor := agentActor("capability:firestore.batch.close:execute")

	created, err := svc.Create(context.Background(), actor, validRequest(), time.Now())
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		p, err := svc.Get(context.Background(), created.Proposal.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Proposal.ID, p.ID)
		assert.Equal(t, created.Proposal.InputHash, p.InputHash)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.Get(context.Background(), uuid.New())
		require.Error(t, err)
		assert.True(t, services.IsNotFoundError(err))
	})
}

func TestApprove(t *testing.T) {
	svc, _ := testService(t)
	actor := agentActor("capability:firestore.batch.close:execute")
	now := time.Now()

	created, err := svc.Create(context.Background(), actor, validRequest(), now)
	require.NoError(t, err)

	require.NoError(t, svc.Approve(context.Background(), created.Proposal.ID, "staff-reviewer", now))

	p, err := svc.Get(context.Background(), created.Proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalApproved, p.Status)
	assert.Equal(t, "staff-reviewer", p.ApprovedBy)
	require.NotNil(t, p.ApprovedAt)
	assert.Equal(t, now, *p.ApprovedAt)
}

func TestReject(t *testing.T) {
	svc, _ := testService(t)
	actor := agentActor("capability:firestore.batch.close:execute")

	created, err := svc.Create(context.Background(), actor, validRequest(), time.Now())
	require.NoError(t, err)

	require.NoError(t, svc.Reject(context.Background(), created.Proposal.ID, "staff-reviewer", time.Now()))

	p, err := svc.Get(context.Background(), created.Proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalRejected, p.Status)
	assert.Empty(t, p.ApprovedBy)
	assert.Nil(t, p.ApprovedAt)
}

func TestTransition_ResolvedProposalsAreFinal(t *testing.T) {
	svc, _ := testService(t)
	actor := agentActor("capability:firestore.batch.close:execute")

	created, err := svc.Create(context.Background(), actor, validRequest(), time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.Approve(context.Background(), created.Proposal.ID, "staff-1", time.Now()))

	t.Run("approve twice", func(t *testing.T) {
		err := svc.Approve(context.Background(), created.Proposal.ID, "staff-2", time.Now())
		require.Error(t, err)
		assert.True(t, services.IsConflictError(err))
	})

	t.Run("reject after approve", func(t *testing.T) {
		err := svc.Reject(context.Background(), created.Proposal.ID, "staff-2", time.Now())
		require.Error(t, err)
		assert.True(t, services.IsConflictError(err))
	})

	t.Run("unknown proposal", func(t *testing.T) {
		err := svc.Approve(context.Background(), uuid.New(), "staff-2", time.Now())
		require.Error(t, err)
		assert.True(t, services.IsNotFoundError(err))
	})
}
