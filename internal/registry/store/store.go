// Package store persists the registry's logical tables: identities, the
// address index, endorsements, credentials, the trusted-verifier set, and the
// ever-increasing entity counters.
//
// Error contract: methods return sentinel.ErrNotFound for missing records and
// sentinel.ErrConflict for uniqueness violations; the service translates
// these into coded domain errors. Mutating methods join the transaction
// carried in ctx when present.
package store

import (
	"context"

	"selfid/internal/registry/models"
	"selfid/pkg/domain"
)

// Counters mirror the monotonically increasing totals: each equals the number
// of records ever created, never decremented even when records deactivate.
// Identity ids are 1-based (1..Identities); endorsement and credential ids
// are 0-based (0..total-1).
type Counters struct {
	Identities   uint64
	Endorsements uint64
	Credentials  uint64
}

// Store is the registry's durable state. Implementations must make each
// method atomic; cross-method atomicity comes from the service's transaction
// runner.
type Store interface {
	// Counters returns the current entity totals, used for id allocation.
	Counters(ctx context.Context) (Counters, error)

	// CreateIdentity persists a new identity, claims its address index entry,
	// and increments the identity total. Returns sentinel.ErrConflict if the
	// address already has an index entry (active or not).
	CreateIdentity(ctx context.Context, identity *models.Identity) error
	// GetIdentity returns an identity by id.
	GetIdentity(ctx context.Context, id uint64) (*models.Identity, error)
	// UpdateIdentity overwrites the mutable fields of an existing identity.
	UpdateIdentity(ctx context.Context, identity *models.Identity) error
	// IdentityIDByAddress resolves the address index. ok is false when the
	// address has no entry.
	IdentityIDByAddress(ctx context.Context, addr domain.Address) (id uint64, ok bool, err error)
	// ReindexAddress atomically clears the old owner's index entry and claims
	// the new owner's. Returns sentinel.ErrConflict if the new owner already
	// has an entry.
	ReindexAddress(ctx context.Context, oldOwner, newOwner domain.Address, identityID uint64) error

	// AppendEndorsement persists an endorsement, links it to the endorsed
	// identity, and increments the endorsement total.
	AppendEndorsement(ctx context.Context, endorsement *models.Endorsement, endorsedIdentityID uint64) error
	// GetEndorsement returns an endorsement by id.
	GetEndorsement(ctx context.Context, id uint64) (*models.Endorsement, error)
	// ListIdentityEndorsements returns the endorsement ids linked to an
	// identity in creation order.
	ListIdentityEndorsements(ctx context.Context, identityID uint64) ([]uint64, error)

	// AppendCredential persists a credential, links it to its identity, and
	// increments the credential total.
	AppendCredential(ctx context.Context, credential *models.Credential) error
	// GetCredential returns a credential by id.
	GetCredential(ctx context.Context, id uint64) (*models.Credential, error)
	// ListIdentityCredentials returns the credential ids linked to an
	// identity in creation order.
	ListIdentityCredentials(ctx context.Context, identityID uint64) ([]uint64, error)

	// AddTrustedVerifier records verifier-set membership. Idempotent.
	AddTrustedVerifier(ctx context.Context, addr domain.Address) error
	// RemoveTrustedVerifier clears verifier-set membership. Idempotent.
	RemoveTrustedVerifier(ctx context.Context, addr domain.Address) error
	// IsTrustedVerifier reports verifier-set membership.
	IsTrustedVerifier(ctx context.Context, addr domain.Address) (bool, error)
	// ListTrustedVerifiers returns the verifier set in insertion order.
	ListTrustedVerifiers(ctx context.Context) ([]domain.Address, error)
}
