package service

import (
	"context"
	"time"

	"selfid/internal/audit"
	"selfid/internal/registry/models"
	"selfid/internal/registry/reputation"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

// AddCredential issues an issuer-attested claim for an identity. Issuance by
// a trusted verifier is itself the verification act, so the credential is
// born verified. The identity gains a fixed reputation bonus.
func (s *Service) AddCredential(ctx context.Context, caller domain.Address, identityID uint64, credentialType, issuer string, credentialHash domain.Hash, expiresAt time.Time) (uint64, error) {
	var credentialID uint64
	var owner domain.Address

	err := s.mutate(ctx, "registry.AddCredential", func(ctx context.Context) error {
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
		if !identity.Active {
			return dErrors.New(dErrors.CodeInvalidState, "identity is deactivated")
		}

		issuedAt := s.now()
		if credentialType == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "credential type cannot be empty")
		}
		if issuer == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "issuer cannot be empty")
		}
		if credentialHash.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "credential hash cannot be zero")
		}
		if !expiresAt.IsZero() && !expiresAt.After(issuedAt) {
			return dErrors.New(dErrors.CodeInvalidInput, "expiry must be strictly in the future")
		}

		counters, err := s.store.Counters(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read counters")
		}

		credential, err := models.NewCredential(counters.Credentials, identity.ID, credentialType, issuer, credentialHash, issuedAt, expiresAt)
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, dErrors.Message(err))
		}

		if err := s.store.AppendCredential(ctx, credential); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append credential")
		}

		identity.ReputationScore = reputation.ApplyDelta(identity.ReputationScore, models.ReputationCredentialBonus)
		if err := s.store.UpdateIdentity(ctx, identity); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update identity")
		}

		recordID := credential.ID
		if err := s.emit(ctx, audit.Event{
			Type:       audit.EventCredentialAdded,
			Timestamp:  s.now(),
			Caller:     caller,
			IdentityID: identity.ID,
			RecordID:   &recordID,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit event")
		}
		if err := s.emitReputationUpdated(ctx, caller, identity.ID, identity.ReputationScore); err != nil {
			return err
		}

		credentialID = credential.ID
		owner = identity.Owner
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.invalidateStatus(ctx, owner.String())
	if s.metrics != nil {
		s.metrics.CredentialsIssued.Inc()
	}
	s.logAudit(ctx, string(audit.EventCredentialAdded),
		"credential_id", credentialID,
		"identity_id", identityID,
		"issuer", issuer,
	)
	return credentialID, nil
}
