package models

// RiskLevel classifies a capability for audit triage. It does not gate
// execution by itself.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// CapabilityDefinition is a registry entry for one pre-registered operation
// the platform is allowed to expose to agents and automations.
type CapabilityDefinition struct {
	ID               string    `json:"id"`
	Target           string    `json:"target"` // logical subsystem: firestore, hubitat, ...
	ReadOnly         bool      `json:"read_only"`
	RequiresApproval bool      `json:"requires_approval"`
	MaxCallsPerHour  int       `json:"max_calls_per_hour"`
	Risk             RiskLevel `json:"risk"`
}

// Registry is the fixed catalog of capabilities known to the gate.
type Registry []CapabilityDefinition

// Find returns the capability with the given ID, or nil if it is not in the
// catalog.
func (r Registry) Find(id string) *CapabilityDefinition {
	for i := range r {
		if r[i].ID == id {
			return &r[i]
		}
	}
	return nil
}

// DefaultRegistry returns the studio capability catalog. Registry contents are
// authored out-of-band; this is the snapshot the gate ships with.
func DefaultRegistry() Registry {
	return Registry{
		{
			ID:               "firestore.batch.close",
			Target:           "firestore",
			ReadOnly:         false,
			RequiresApproval: true,
			MaxCallsPerHour:  2,
			Risk:             RiskHigh,
		},
		{
			ID:               "firestore.reservation.list",
			Target:           "firestore",
			ReadOnly:         true,
			RequiresApproval: false,
			MaxCallsPerHour:  120,
			Risk:             RiskLow,
		},
		{
			ID:               "hubitat.device.status",
			Target:           "hubitat",
			ReadOnly:         true,
			RequiresApproval: false,
			MaxCallsPerHour:  60,
			Risk:             RiskLow,
		},
		{
			ID:               "hubitat.kiln.setpoint",
			Target:           "hubitat",
			ReadOnly:         false,
			RequiresApproval: true,
			MaxCallsPerHour:  4,
			Risk:             RiskHigh,
		},
		{
			ID:               "firestore.member.note.append",
			Target:           "firestore",
			ReadOnly:         false,
			RequiresApproval: false,
			MaxCallsPerHour:  30,
			Risk:             RiskMedium,
		},
	}
}
