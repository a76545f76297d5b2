package models

import (
	"time"

	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

// Credential is an issuer-attested claim linked to an identity. Issuance by a
// trusted verifier is itself the verification act, so Verified is always true
// on creation. Immutable once created apart from the Active flag, which the
// baseline surface never clears.
type Credential struct {
	ID             uint64      `json:"id"`
	IdentityID     uint64      `json:"identity_id"`
	CredentialType string      `json:"credential_type"`
	Issuer         string      `json:"issuer"`
	CredentialHash domain.Hash `json:"credential_hash"`
	IssuedAt       time.Time   `json:"issued_at"`
	// ExpiresAt is bookkeeping only: expiry is a read-time concern for
	// callers, never enforced by a background transition. Zero means never.
	ExpiresAt time.Time `json:"expires_at"`
	Verified  bool      `json:"verified"`
	Active    bool      `json:"active"`
}

// NewCredential constructs an issued credential.
func NewCredential(id, identityID uint64, credentialType, issuer string, credentialHash domain.Hash, issuedAt, expiresAt time.Time) (*Credential, error) {
	if identityID == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential must reference an identity")
	}
	if credentialType == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential type cannot be empty")
	}
	if issuer == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential issuer cannot be empty")
	}
	if credentialHash.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential hash cannot be zero")
	}
	if !expiresAt.IsZero() && !expiresAt.After(issuedAt) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential expiry must be in the future")
	}
	return &Credential{
		ID:             id,
		IdentityID:     identityID,
		CredentialType: credentialType,
		Issuer:         issuer,
		CredentialHash: credentialHash,
		IssuedAt:       issuedAt,
		ExpiresAt:      expiresAt,
		Verified:       true,
		Active:         true,
	}, nil
}

// Expired reports whether the credential has lapsed as of now. Callers decide
// what to do with lapsed credentials; the registry never deactivates them.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(now)
}
