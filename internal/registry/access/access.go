// Package access holds the authorization policy every mutating operation
// consults before touching state. The policy itself is pure: verifier-set
// membership is read from the store by the service and passed in, so the
// predicates stay trivially testable.
package access

import (
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

// Policy answers authorization queries for the registry.
//
// Invariant: the owner principal is always a trusted verifier and can never
// be removed from that set.
type Policy struct {
	owner domain.Address
}

// New constructs the policy for the given registry owner.
func New(owner domain.Address) (*Policy, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registry owner cannot be the null address")
	}
	return &Policy{owner: owner}, nil
}

// Owner returns the registry owner principal.
func (p *Policy) Owner() domain.Address {
	return p.owner
}

// IsOwner reports whether the caller is the registry owner.
func (p *Policy) IsOwner(caller domain.Address) bool {
	return caller == p.owner
}

// IsTrustedVerifier reports whether the caller may verify identities and
// issue credentials. inSet is the caller's membership in the persisted
// verifier set; the owner is trusted unconditionally.
func (p *Policy) IsTrustedVerifier(caller domain.Address, inSet bool) bool {
	return caller == p.owner || inSet
}

// AuthorizeVerifierAddition validates an addTrustedVerifier call.
func (p *Policy) AuthorizeVerifierAddition(caller, addr domain.Address, alreadyTrusted bool) error {
	if !p.IsOwner(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "only the registry owner can add trusted verifiers")
	}
	if addr.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "verifier address cannot be the null address")
	}
	if addr == p.owner || alreadyTrusted {
		return dErrors.New(dErrors.CodeInvalidInput, "address is already a trusted verifier")
	}
	return nil
}

// AuthorizeVerifierRemoval validates a removeTrustedVerifier call. Removing a
// non-member is not an error; removing the owner always is.
func (p *Policy) AuthorizeVerifierRemoval(caller, addr domain.Address) error {
	if !p.IsOwner(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "only the registry owner can remove trusted verifiers")
	}
	if addr == p.owner {
		return dErrors.New(dErrors.CodeInvalidInput, "the registry owner cannot be removed from the verifier set")
	}
	return nil
}
