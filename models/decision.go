package models

// ReasonCode identifies why a decision denied (or, for proposal creation,
// failed). The set is closed: callers switch on these values.
type ReasonCode string

const (
	ReasonCapabilityUnknown      ReasonCode = "CAPABILITY_UNKNOWN"
	ReasonDelegationScopeMissing ReasonCode = "DELEGATION_SCOPE_MISSING"
	ReasonApprovalRequired       ReasonCode = "APPROVAL_REQUIRED"
	ReasonRateLimited            ReasonCode = "RATE_LIMITED"
	ReasonTenantMismatch         ReasonCode = "TENANT_MISMATCH"
	ReasonKillSwitchActive       ReasonCode = "KILL_SWITCH_ACTIVE"
)

// ApprovalState records how an allowed execution cleared the approval gate.
type ApprovalState string

const (
	ApprovalStateApproved ApprovalState = "approved"
	ApprovalStateExempt   ApprovalState = "exempt"
)

// Decision is the terminal outcome of a proposal creation or an execution
// evaluation. Denials are decision outcomes, not errors.
type Decision struct {
	Allowed           bool          `json:"allowed"`
	ReasonCode        ReasonCode    `json:"reason_code,omitempty"`
	ApprovalState     ApprovalState `json:"approval_state,omitempty"`
	RetryAfterSeconds int           `json:"retry_after_seconds,omitempty"`
}

// Deny builds a denied decision with the given reason code.
func Deny(code ReasonCode) Decision {
	return Decision{Allowed: false, ReasonCode: code}
}
