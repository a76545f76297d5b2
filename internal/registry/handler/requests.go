package handler

import (
	"time"

	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

// Request DTOs carry their own parse step so handlers stay thin: decode,
// parse, call the service. Address and hash fields arrive as strings and are
// normalized through the domain parsers; deeper semantic checks live in the
// service.

type createIdentityRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	DocumentHash string `json:"document_hash"`
}

func (r *createIdentityRequest) Parse() (domain.Hash, error) {
	hash, err := domain.ParseHash(r.DocumentHash)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid document_hash: "+err.Error())
	}
	return hash, nil
}

type transferOwnershipRequest struct {
	NewOwner string `json:"new_owner"`
}

func (r *transferOwnershipRequest) Parse() (domain.Address, error) {
	addr, err := domain.ParseAddress(r.NewOwner)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid new_owner: "+err.Error())
	}
	return addr, nil
}

type giveEndorsementRequest struct {
	EndorsedAddress string `json:"endorsed_address"`
	Category        string `json:"category"`
	Message         string `json:"message"`
}

func (r *giveEndorsementRequest) Parse() (domain.Address, error) {
	addr, err := domain.ParseAddress(r.EndorsedAddress)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid endorsed_address: "+err.Error())
	}
	return addr, nil
}

type addCredentialRequest struct {
	IdentityID     uint64 `json:"identity_id"`
	CredentialType string `json:"credential_type"`
	Issuer         string `json:"issuer"`
	CredentialHash string `json:"credential_hash"`
	// ExpiresAt is RFC 3339; empty means the credential never lapses.
	ExpiresAt string `json:"expires_at,omitempty"`
}

func (r *addCredentialRequest) Parse() (domain.Hash, time.Time, error) {
	hash, err := domain.ParseHash(r.CredentialHash)
	if err != nil {
		return "", time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "invalid credential_hash: "+err.Error())
	}
	var expiresAt time.Time
	if r.ExpiresAt != "" {
		expiresAt, err = time.Parse(time.RFC3339, r.ExpiresAt)
		if err != nil {
			return "", time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "invalid expires_at: must be RFC 3339")
		}
	}
	return hash, expiresAt, nil
}

type verifierRequest struct {
	Address string `json:"address"`
}

func (r *verifierRequest) Parse() (domain.Address, error) {
	addr, err := domain.ParseAddress(r.Address)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid address: "+err.Error())
	}
	return addr, nil
}

type createdResponse struct {
	ID uint64 `json:"id"`
}

type idListResponse struct {
	IDs []uint64 `json:"ids"`
}

type statsResponse struct {
	TotalIdentities   uint64 `json:"total_identities"`
	TotalEndorsements uint64 `json:"total_endorsements"`
	TotalCredentials  uint64 `json:"total_credentials"`
}

type verifiersResponse struct {
	Verifiers []domain.Address `json:"verifiers"`
}
