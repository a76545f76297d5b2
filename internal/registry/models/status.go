package models

// IdentityStatus is the tri-state answer to "does this address have an
// identity". A deactivated identity still occupies its address index entry,
// so it is reported distinctly rather than conflated with "no identity".
type IdentityStatus string

const (
	// StatusNone means the address never registered an identity.
	StatusNone IdentityStatus = "none"
	// StatusDeactivated means the address registered an identity that was
	// later retired. The address cannot re-register.
	StatusDeactivated IdentityStatus = "deactivated"
	// StatusActive means the address currently controls an active identity.
	StatusActive IdentityStatus = "active"
)

// StatusReport is the read model returned by identity status checks.
type StatusReport struct {
	Status          IdentityStatus `json:"status"`
	HasIdentity     bool           `json:"has_identity"`
	Verified        bool           `json:"verified"`
	ReputationScore int            `json:"reputation_score"`
}
