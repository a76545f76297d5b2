package service

import (
	"context"
	"errors"

	"selfid/internal/audit"
	"selfid/internal/registry/models"
	"selfid/internal/registry/reputation"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
	"selfid/pkg/platform/sentinel"
)

// CreateIdentity registers a new identity for the caller.
//
// Errors: CodeInvalidInput for empty name/email or a zero document hash;
// CodeConflict when the caller's address already has an index entry, active
// or deactivated (deactivation is terminal and never frees the address).
func (s *Service) CreateIdentity(ctx context.Context, caller domain.Address, name, email string, documentHash domain.Hash) (uint64, error) {
	var identityID uint64

	err := s.mutate(ctx, "registry.CreateIdentity", func(ctx context.Context) error {
		if caller.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "caller cannot be the null address")
		}
		if name == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "name cannot be empty")
		}
		if email == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "email cannot be empty")
		}
		if documentHash.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "document hash cannot be zero")
		}

		if _, taken, err := s.store.IdentityIDByAddress(ctx, caller); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve address index")
		} else if taken {
			return dErrors.New(dErrors.CodeConflict, "address already has an identity")
		}

		counters, err := s.store.Counters(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read counters")
		}

		identity, err := models.NewIdentity(counters.Identities+1, caller, name, email, documentHash, s.now())
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, dErrors.Message(err))
		}

		if err := s.store.CreateIdentity(ctx, identity); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "address already has an identity")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create identity")
		}

		if err := s.emit(ctx, audit.Event{
			Type:       audit.EventIdentityCreated,
			Timestamp:  s.now(),
			Caller:     caller,
			IdentityID: identity.ID,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit event")
		}

		identityID = identity.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.invalidateStatus(ctx, caller.String())
	if s.metrics != nil {
		s.metrics.IdentitiesCreated.Inc()
	}
	s.logAudit(ctx, string(audit.EventIdentityCreated),
		"identity_id", identityID,
		"owner", caller.String(),
	)
	return identityID, nil
}

// VerifyIdentity lets a trusted verifier attest an identity's authenticity.
// Verification is monotonic: it never reverts, and re-verifying fails.
func (s *Service) VerifyIdentity(ctx context.Context, caller domain.Address, identityID uint64) error {
	var owner domain.Address
	var newScore int

	err := s.mutate(ctx, "registry.VerifyIdentity", func(ctx context.Context) error {
		trusted, err := s.isTrustedVerifier(ctx, caller)
		if err != nil {
			return err
		}
		if !trusted {
			return dErrors.New(dErrors.CodeUnauthorized, "caller is not a trusted verifier")
		}

		identity, err := s.loadIdentity(ctx, identityID)
		if err != nil {
			return err
		}
		if err := identity.CanVerify(); err != nil {
			return err
		}

		identity.ApplyVerification()
		identity.ReputationScore = reputation.ApplyDelta(identity.ReputationScore, models.ReputationVerifyBonus)
		if err := s.store.UpdateIdentity(ctx, identity); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity")
		}

		if err := s.emit(ctx, audit.Event{
			Type:       audit.EventIdentityVerified,
			Timestamp:  s.now(),
			Caller:     caller,
			IdentityID: identity.ID,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit event")
		}
		if err := s.emitReputationUpdated(ctx, caller, identity.ID, identity.ReputationScore); err != nil {
			return err
		}

		owner = identity.Owner
		newScore = identity.ReputationScore
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateStatus(ctx, owner.String())
	if s.metrics != nil {
		s.metrics.IdentitiesVerified.Inc()
	}
	s.logAudit(ctx, string(audit.EventIdentityVerified),
		"identity_id", identityID,
		"verifier", caller.String(),
		"reputation_score", newScore,
	)
	return nil
}

// TransferIdentityOwnership repoints an identity to a new controlling
// principal, atomically moving the address index entry.
func (s *Service) TransferIdentityOwnership(ctx context.Context, caller domain.Address, identityID uint64, newOwner domain.Address) error {
	var oldOwner domain.Address

	err := s.mutate(ctx, "registry.TransferIdentityOwnership", func(ctx context.Context) error {
		identity, err := s.loadIdentity(ctx, identityID)
		if err != nil {
			return err
		}
		if identity.Owner != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "only the identity owner can transfer ownership")
		}
		if !identity.Active {
			return dErrors.New(dErrors.CodeInvalidState, "identity is deactivated")
		}
		if newOwner.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "new owner cannot be the null address")
		}
		if _, taken, err := s.store.IdentityIDByAddress(ctx, newOwner); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve address index")
		} else if taken {
			return dErrors.New(dErrors.CodeConflict, "new owner already has an identity")
		}

		if err := s.store.ReindexAddress(ctx, identity.Owner, newOwner, identity.ID); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "new owner already has an identity")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to repoint address index")
		}

		oldOwner = identity.Owner
		identity.Owner = newOwner
		if err := s.store.UpdateIdentity(ctx, identity); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity")
		}

		if err := s.emit(ctx, audit.Event{
			Type:       audit.EventIdentityOwnershipTransferred,
			Timestamp:  s.now(),
			Caller:     caller,
			IdentityID: identity.ID,
			Address:    newOwner,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit event")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateStatus(ctx, oldOwner.String(), newOwner.String())
	s.logAudit(ctx, string(audit.EventIdentityOwnershipTransferred),
		"identity_id", identityID,
		"old_owner", oldOwner.String(),
		"new_owner", newOwner.String(),
	)
	return nil
}

// DeactivateIdentity retires an identity. Terminal: nothing reactivates it,
// and its address index entry is kept so the address can never re-register.
func (s *Service) DeactivateIdentity(ctx context.Context, caller domain.Address, identityID uint64) error {
	var owner domain.Address

	err := s.mutate(ctx, "registry.DeactivateIdentity", func(ctx context.Context) error {
		identity, err := s.loadIdentity(ctx, identityID)
		if err != nil {
			return err
		}
		if !s.policy.IsOwner(caller) && identity.Owner != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "only the registry owner or the identity owner can deactivate")
		}
		if err := identity.CanDeactivate(); err != nil {
			return err
		}

		identity.ApplyDeactivation()
		if err := s.store.UpdateIdentity(ctx, identity); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity")
		}

		if err := s.emit(ctx, audit.Event{
			Type:       audit.EventIdentityDeactivated,
			Timestamp:  s.now(),
			Caller:     caller,
			IdentityID: identity.ID,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit event")
		}

		owner = identity.Owner
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateStatus(ctx, owner.String())
	s.logAudit(ctx, string(audit.EventIdentityDeactivated),
		"identity_id", identityID,
		"caller", caller.String(),
	)
	return nil
}

// loadIdentity fetches an identity, translating store sentinels.
func (s *Service) loadIdentity(ctx context.Context, identityID uint64) (*models.Identity, error) {
	identity, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return identity, nil
}

// isTrustedVerifier combines the pure policy with persisted set membership.
func (s *Service) isTrustedVerifier(ctx context.Context, caller domain.Address) (bool, error) {
	if s.policy.IsOwner(caller) {
		return true, nil
	}
	inSet, err := s.store.IsTrustedVerifier(ctx, caller)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check verifier set")
	}
	return s.policy.IsTrustedVerifier(caller, inSet), nil
}

// emitReputationUpdated records a score change. Emitted for every reputation
// delta, including ones fully absorbed by the cap.
func (s *Service) emitReputationUpdated(ctx context.Context, caller domain.Address, identityID uint64, newScore int) error {
	score := newScore
	if err := s.emit(ctx, audit.Event{
		Type:       audit.EventReputationUpdated,
		Timestamp:  s.now(),
		Caller:     caller,
		IdentityID: identityID,
		Score:      &score,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit event")
	}
	if s.metrics != nil {
		s.metrics.ReputationUpdates.Inc()
	}
	return nil
}
