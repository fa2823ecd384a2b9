package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/glazeworks/actiongate/hashing"
	"github.com/glazeworks/actiongate/models"
	"github.com/glazeworks/actiongate/repositories/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRecorder(t *testing.T) (*Recorder, *memory.EventStore) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	store := memory.NewEventStore()
	return NewRecorder(store, logger), store
}

func testCapability() *models.CapabilityDefinition {
	return &models.CapabilityDefinition{
		ID:               "firestore.batch.close",
		Target:           "firestore",
		RequiresApproval: true,
		MaxCallsPerHour:  2,
		Risk:             models.RiskHigh,
	}
}

func testProposal() *models.Proposal {
	return &models.Proposal{
		ID:           uuid.New(),
		CapabilityID: "firestore.batch.close",
		OwnerUID:     "owner-1",
		InputHash:    "1f2e3d4c",
		Status:       models.ProposalApproved,
		CreatedAt:    time.Now(),
	}
}

func testActor() models.ActorContext {
	return models.ActorContext{
		ActorType: models.ActorTypeAgent,
		ActorID:   "agent-kiln",
		OwnerUID:  "owner-1",
		TenantID:  "tenant-a",
	}
}

func TestAppendExecutionAudit(t *testing.T) {
	recorder, store := testRecorder(t)
	proposal := testProposal()
	output := json.RawMessage(`{"closed":true,"batchId":"2026-08"}`)

	err := recorder.AppendExecutionAudit(context.Background(), testActor(), testCapability(), proposal, output,
		models.Decision{Allowed: true, ApprovalState: models.ApprovalStateApproved})
	require.NoError(t, err)

	events, err := store.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, "capability.firestore.batch.close.executed", event.Action)
	assert.Equal(t, "agent-kiln", event.ActorID)
	assert.Equal(t, "owner-1", event.OwnerUID)
	assert.Equal(t, "tenant-a", event.TenantID)
	assert.Equal(t, proposal.ID, event.ProposalID)

	// The input hash is carried from proposal creation, never recomputed here.
	assert.Equal(t, "1f2e3d4c", event.InputHash)

	wantOutputHash, err := hashing.Hash(output)
	require.NoError(t, err)
	assert.Equal(t, wantOutputHash, event.OutputHash)
	assert.Equal(t, models.ApprovalStateApproved, event.ApprovalState)
}

func TestAppendExecutionAudit_RecordsExemptState(t *testing.T) {
	recorder, store := testRecorder(t)

	err := recorder.AppendExecutionAudit(context.Background(), testActor(), testCapability(), testProposal(), nil,
		models.Decision{Allowed: true, ApprovalState: models.ApprovalStateExempt})
	require.NoError(t, err)

	events, err := store.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStateExempt, events[0].ApprovalState)
	// The denial reason set stays closed; a clearance is not a reason code.
	assert.Empty(t, events[0].ReasonCode)
}

func TestAppendExecutionAudit_UnhashableOutput(t *testing.T) {
	recorder, store := testRecorder(t)

	err := recorder.AppendExecutionAudit(context.Background(), testActor(), testCapability(), testProposal(),
		json.RawMessage(`{not json`), models.Decision{Allowed: true})
	require.Error(t, err)
	assert.Zero(t, store.Len())
}

func TestAppendDenialAudit(t *testing.T) {
	recorder, store := testRecorder(t)
	proposal := testProposal()

	t.Run("with proposal", func(t *testing.T) {
		err := recorder.AppendDenialAudit(context.Background(), testActor(), proposal.CapabilityID, proposal,
			models.Deny(models.ReasonTenantMismatch))
		require.NoError(t, err)

		events, err := store.ListRecent(context.Background(), 1)
		require.NoError(t, err)
		event := events[0]
		assert.Equal(t, "capability.firestore.batch.close.failed", event.Action)
		assert.Equal(t, models.ReasonTenantMismatch, event.ReasonCode)
		assert.Equal(t, proposal.ID, event.ProposalID)
		assert.Equal(t, proposal.InputHash, event.InputHash)
		assert.Empty(t, event.OutputHash)
	})

	t.Run("without proposal", func(t *testing.T) {
		err := recorder.AppendDenialAudit(context.Background(), testActor(), "firestore.batch.close", nil,
			models.Deny(models.ReasonDelegationScopeMissing))
		require.NoError(t, err)

		events, err := store.ListRecent(context.Background(), 1)
		require.NoError(t, err)
		event := events[0]
		assert.Equal(t, models.ReasonDelegationScopeMissing, event.ReasonCode)
		assert.Equal(t, uuid.Nil, event.ProposalID)
		assert.Empty(t, event.InputHash)
	})
}

func TestListRecent(t *testing.T) {
	recorder, _ := testRecorder(t)

	for i := 0; i < 3; i++ {
		err := recorder.AppendDenialAudit(context.Background(), testActor(), "firestore.batch.close", nil,
			models.Deny(models.ReasonRateLimited))
		require.NoError(t, err)
	}

	events, err := recorder.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
