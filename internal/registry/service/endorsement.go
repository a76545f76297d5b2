package service

import (
	"context"

	"selfid/internal/audit"
	"selfid/internal/registry/models"
	"selfid/internal/registry/reputation"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

// GiveEndorsement records a weighted peer attestation from the caller's
// identity to the endorsed address. Weight is derived from the endorser's
// reputation at this instant and never re-derived; the reputation gain goes
// to the endorsed identity.
func (s *Service) GiveEndorsement(ctx context.Context, caller, endorsed domain.Address, category, message string) (uint64, error) {
	var endorsementID uint64
	var endorsedOwner domain.Address

	err := s.mutate(ctx, "registry.GiveEndorsement", func(ctx context.Context) error {
		if endorsed.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "endorsed address cannot be the null address")
		}
		if endorsed == caller {
			return dErrors.New(dErrors.CodeInvalidInput, "an identity cannot endorse itself")
		}
		if category == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "category cannot be empty")
		}
		if message == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "message cannot be empty")
		}

		endorser, err := s.identityByAddress(ctx, caller)
		if err != nil {
			return err
		}
		target, err := s.identityByAddress(ctx, endorsed)
		if err != nil {
			return err
		}
		if !target.Active {
			return dErrors.New(dErrors.CodeInvalidState, "endorsed identity is deactivated")
		}
		if err := endorser.CanEndorse(); err != nil {
			return err
		}

		counters, err := s.store.Counters(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read counters")
		}

		weight := endorser.EndorsementWeight()
		endorsement, err := models.NewEndorsement(counters.Endorsements, caller, endorsed, category, message, weight, s.now())
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, dErrors.Message(err))
		}

		if err := s.store.AppendEndorsement(ctx, endorsement, target.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append endorsement")
		}

		target.EndorsementCount++
		target.ReputationScore = reputation.ApplyDelta(target.ReputationScore, weight)
		if err := s.store.UpdateIdentity(ctx, target); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update endorsed identity")
		}

		recordID := endorsement.ID
		if err := s.emit(ctx, audit.Event{
			Type:       audit.EventEndorsementGiven,
			Timestamp:  s.now(),
			Caller:     caller,
			IdentityID: target.ID,
			RecordID:   &recordID,
			Address:    endorsed,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit event")
		}
		if err := s.emitReputationUpdated(ctx, caller, target.ID, target.ReputationScore); err != nil {
			return err
		}

		endorsementID = endorsement.ID
		endorsedOwner = target.Owner
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.invalidateStatus(ctx, endorsedOwner.String())
	if s.metrics != nil {
		s.metrics.EndorsementsGiven.Inc()
	}
	s.logAudit(ctx, string(audit.EventEndorsementGiven),
		"endorsement_id", endorsementID,
		"endorser", caller.String(),
		"endorsed", endorsed.String(),
	)
	return endorsementID, nil
}

// identityByAddress resolves an address through the index to its identity.
func (s *Service) identityByAddress(ctx context.Context, addr domain.Address) (*models.Identity, error) {
	id, ok, err := s.store.IdentityIDByAddress(ctx, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve address index")
	}
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "address has no identity")
	}
	return s.loadIdentity(ctx, id)
}
