package models

import (
	"time"

	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

// Reputation bounds. Every identity's score stays inside [ReputationMin,
// ReputationMax] across any sequence of operations.
const (
	ReputationMin     = 0
	ReputationMax     = 1000
	ReputationInitial = 100

	// ReputationVerifyBonus is applied when a trusted verifier attests the
	// identity.
	ReputationVerifyBonus = 50
	// ReputationCredentialBonus is applied when a credential is issued.
	ReputationCredentialBonus = 20

	// EndorsementMinReputation is the standing an endorser needs before its
	// endorsements count.
	EndorsementMinReputation = 50
	// EndorsementWeightDivisor derives endorsement weight from the endorser's
	// score at endorsement time.
	EndorsementWeightDivisor = 10
)

// Identity is the aggregate root binding an address to profile data and a
// reputation score.
//
// Invariants:
//   - ID is sequential, 1-based, and never reused
//   - Owner is unique among active identities (the address index enforces it)
//   - Name and Email are non-empty; DocumentHash is non-zero
//   - ReputationScore stays within [ReputationMin, ReputationMax]
//   - Verified is monotonic false→true
//   - Active is monotonic true→false; deactivation is terminal
//   - EndorsementCount only grows (no endorsement-removal operation exists)
type Identity struct {
	ID               uint64         `json:"id"`
	Owner            domain.Address `json:"owner"`
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	DocumentHash     domain.Hash    `json:"document_hash"`
	CreatedAt        time.Time      `json:"created_at"`
	ReputationScore  int            `json:"reputation_score"`
	Verified         bool           `json:"verified"`
	Active           bool           `json:"active"`
	EndorsementCount uint64         `json:"endorsement_count"`
}

// NewIdentity constructs a freshly registered identity.
func NewIdentity(id uint64, owner domain.Address, name, email string, documentHash domain.Hash, now time.Time) (*Identity, error) {
	if id == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity id must be positive")
	}
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity owner cannot be the null address")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity name cannot be empty")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity email cannot be empty")
	}
	if documentHash.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity document hash cannot be zero")
	}
	return &Identity{
		ID:              id,
		Owner:           owner,
		Name:            name,
		Email:           email,
		DocumentHash:    documentHash,
		CreatedAt:       now,
		ReputationScore: ReputationInitial,
		Verified:        false,
		Active:          true,
	}, nil
}

// CanVerify checks whether a trusted verifier may attest this identity.
func (i *Identity) CanVerify() error {
	if !i.Active {
		return dErrors.New(dErrors.CodeInvalidState, "identity is deactivated")
	}
	if i.Verified {
		return dErrors.New(dErrors.CodeInvalidState, "identity is already verified")
	}
	return nil
}

// ApplyVerification marks the identity verified. Call CanVerify first.
func (i *Identity) ApplyVerification() {
	i.Verified = true
}

// CanDeactivate checks whether the identity may be retired.
func (i *Identity) CanDeactivate() error {
	if !i.Active {
		return dErrors.New(dErrors.CodeInvalidState, "identity is already deactivated")
	}
	return nil
}

// ApplyDeactivation retires the identity. Terminal: no operation reactivates
// it. Call CanDeactivate first.
func (i *Identity) ApplyDeactivation() {
	i.Active = false
}

// CanEndorse checks whether this identity has the standing to endorse peers.
func (i *Identity) CanEndorse() error {
	if !i.Active {
		return dErrors.New(dErrors.CodeInvalidState, "endorser identity is deactivated")
	}
	if i.ReputationScore < EndorsementMinReputation {
		return dErrors.New(dErrors.CodeUnauthorized, "insufficient reputation to endorse")
	}
	return nil
}

// EndorsementWeight derives the weight this identity's endorsements carry
// right now. Weight is fixed at endorsement time; later score changes never
// retroactively adjust recorded endorsements.
func (i *Identity) EndorsementWeight() int {
	return i.ReputationScore / EndorsementWeightDivisor
}
