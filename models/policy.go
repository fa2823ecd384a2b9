package models

import (
	"time"

	"github.com/google/uuid"
)

// ExemptionStatus is the lifecycle state of an exemption.
type ExemptionStatus string

const (
	ExemptionActive  ExemptionStatus = "active"
	ExemptionExpired ExemptionStatus = "expired"
	ExemptionRevoked ExemptionStatus = "revoked"
)

// Exemption is a time-bounded override that bypasses the approval gate for a
// single capability and owner. It never widens scope beyond the capability it
// names, and it never bypasses rate limiting or the kill switch.
type Exemption struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	CapabilityID  string          `json:"capability_id" db:"capability_id"`
	OwnerUID      string          `json:"owner_uid" db:"owner_uid"`
	Justification string          `json:"justification" db:"justification"`
	ApprovedBy    string          `json:"approved_by" db:"approved_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at" db:"expires_at"`
	Status        ExemptionStatus `json:"status" db:"status"`
}

// Covers reports whether the exemption is honored for the given capability
// and owner at the given instant: status must be active and the evaluation
// time strictly before ExpiresAt.
func (e Exemption) Covers(capabilityID, ownerUID string, now time.Time) bool {
	if e.Status != ExemptionActive {
		return false
	}
	if e.CapabilityID != capabilityID || e.OwnerUID != ownerUID {
		return false
	}
	return now.Before(e.ExpiresAt)
}

// KillSwitchState is the global emergency override. When enabled, every
// execution is denied regardless of any other state.
type KillSwitchState struct {
	Enabled bool      `json:"enabled"`
	SetBy   string    `json:"set_by,omitempty"`
	SetAt   time.Time `json:"set_at,omitempty"`
	Note    string    `json:"note,omitempty"`
}

// PolicyConfig is the policy snapshot read once per evaluation. The evaluator
// never caches or mutates it; concurrent policy edits can never produce a
// torn read within a single decision.
type PolicyConfig struct {
	Version    int64           `json:"version"`
	KillSwitch KillSwitchState `json:"kill_switch"`
	Exemptions []Exemption     `json:"exemptions"`
}
