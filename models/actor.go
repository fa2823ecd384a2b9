package models

import "fmt"

// ActorType distinguishes autonomous agents from human-driven automation.
type ActorType string

const (
	ActorTypeAgent  ActorType = "agent"
	ActorTypeStaff  ActorType = "staff"
	ActorTypeClient ActorType = "client"
)

// ActorContext identifies the calling principal for one request. It is
// caller-supplied (in production, carried by a signed delegation token) and
// never persisted by the engine itself.
type ActorContext struct {
	ActorType       ActorType `json:"actor_type"`
	ActorID         string    `json:"actor_id"`
	OwnerUID        string    `json:"owner_uid"` // account on whose behalf the action runs
	TenantID        string    `json:"tenant_id,omitempty"`
	EffectiveScopes []string  `json:"effective_scopes"`
}

// ExecuteScope returns the delegation scope string that authorizes executing
// the given capability, e.g. "capability:firestore.batch.close:execute".
func ExecuteScope(capabilityID string) string {
	return fmt.Sprintf("capability:%s:execute", capabilityID)
}

// HasScope reports whether the actor holds the given delegation scope.
func (a ActorContext) HasScope(scope string) bool {
	for _, s := range a.EffectiveScopes {
		if s == scope {
			return true
		}
	}
	return false
}
