package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFind(t *testing.T) {
	registry := DefaultRegistry()

	t.Run("known capability", func(t *testing.T) {
		capability := registry.Find("firestore.batch.close")
		require.NotNil(t, capability)
		assert.True(t, capability.RequiresApproval)
		assert.Equal(t, 2, capability.MaxCallsPerHour)
		assert.Equal(t, RiskHigh, capability.Risk)
	})

	t.Run("unknown capability", func(t *testing.T) {
		assert.Nil(t, registry.Find("firestore.batch.reopen"))
		assert.Nil(t, registry.Find(""))
	})
}

func TestExecuteScope(t *testing.T) {
	assert.Equal(t, "capability:firestore.batch.close:execute", ExecuteScope("firestore.batch.close"))
}

func TestActorHasScope(t *testing.T) {
	actor := ActorContext{
		EffectiveScopes: []string{
			"capability:firestore.batch.close:execute",
			"capability:hubitat.device.status:execute",
		},
	}

	assert.True(t, actor.HasScope("capability:firestore.batch.close:execute"))
	assert.False(t, actor.HasScope("capability:hubitat.kiln.setpoint:execute"))
	assert.False(t, ActorContext{}.HasScope("capability:firestore.batch.close:execute"))
}

func TestExemptionCovers(t *testing.T) {
	now := time.Now()
	base := Exemption{
		CapabilityID: "firestore.batch.close",
		OwnerUID:     "owner-1",
		Status:       ExemptionActive,
		ExpiresAt:    now.Add(time.Hour),
	}

	t.Run("active and matching", func(t *testing.T) {
		assert.True(t, base.Covers("firestore.batch.close", "owner-1", now))
	})

	t.Run("expiry boundary is exclusive", func(t *testing.T) {
		assert.False(t, base.Covers("firestore.batch.close", "owner-1", base.ExpiresAt))
		assert.True(t, base.Covers("firestore.batch.close", "owner-1", base.ExpiresAt.Add(-time.Second)))
	})

	t.Run("wrong capability or owner", func(t *testing.T) {
		assert.False(t, base.Covers("hubitat.kiln.setpoint", "owner-1", now))
		assert.False(t, base.Covers("firestore.batch.close", "owner-2", now))
	})

	t.Run("inactive status", func(t *testing.T) {
		for _, status := range []ExemptionStatus{ExemptionExpired, ExemptionRevoked} {
			e := base
			e.Status = status
			assert.False(t, e.Covers("firestore.batch.close", "owner-1", now))
		}
	})
}

func TestAuditAction(t *testing.T) {
	assert.Equal(t, "capability.firestore.batch.close.executed", AuditAction("firestore.batch.close", AuditOutcomeExecuted))
	assert.Equal(t, "capability.hubitat.kiln.setpoint.failed", AuditAction("hubitat.kiln.setpoint", AuditOutcomeFailed))
}

func TestAuditEvent_TableName(t *testing.T) {
	assert.Equal(t, "audit_events", AuditEvent{}.TableName())
}

func TestAuditEvent_BuilderMethods(t *testing.T) {
	at := time.Now()
	actor := ActorContext{ActorID: "agent-kiln", OwnerUID: "owner-1", TenantID: "tenant-a"}
	proposal := &Proposal{InputHash: "1f2e3d4c"}

	event := NewAuditEvent("firestore.batch.close", AuditOutcomeExecuted, at).
		WithActor(actor).
		WithProposal(proposal).
		WithOutputHash("a1b2c3d4").
		WithReason(ReasonRateLimited).
		WithApprovalState(ApprovalStateExempt)

	assert.Equal(t, at, event.At)
	assert.Equal(t, "capability.firestore.batch.close.executed", event.Action)
	assert.Equal(t, "agent-kiln", event.ActorID)
	assert.Equal(t, "tenant-a", event.TenantID)
	assert.Equal(t, "1f2e3d4c", event.InputHash)
	assert.Equal(t, "a1b2c3d4", event.OutputHash)
	assert.Equal(t, ReasonRateLimited, event.ReasonCode)
	assert.Equal(t, ApprovalStateExempt, event.ApprovalState)
}

func TestDeny(t *testing.T) {
	decision := Deny(ReasonTenantMismatch)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonTenantMismatch, decision.ReasonCode)
	assert.Zero(t, decision.RetryAfterSeconds)
}
