package service

import (
	"context"
	"errors"

	"selfid/internal/registry/models"
	"selfid/internal/registry/store"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
	"selfid/pkg/platform/sentinel"
)

// GetIdentity returns an identity by id. The only failure mode is NotFound
// for an id that was never allocated.
func (s *Service) GetIdentity(ctx context.Context, identityID uint64) (*models.Identity, error) {
	return s.loadIdentity(ctx, identityID)
}

// GetEndorsement returns an endorsement by id.
func (s *Service) GetEndorsement(ctx context.Context, id uint64) (*models.Endorsement, error) {
	endorsement, err := s.store.GetEndorsement(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "endorsement not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load endorsement")
	}
	return endorsement, nil
}

// GetCredential returns a credential by id.
func (s *Service) GetCredential(ctx context.Context, id uint64) (*models.Credential, error) {
	credential, err := s.store.GetCredential(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	return credential, nil
}

// GetIdentityEndorsements returns the endorsement ids linked to an identity
// in creation order. Unknown identities yield an empty list, not an error.
func (s *Service) GetIdentityEndorsements(ctx context.Context, identityID uint64) ([]uint64, error) {
	ids, err := s.store.ListIdentityEndorsements(ctx, identityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list endorsements")
	}
	return ids, nil
}

// GetIdentityCredentials returns the credential ids linked to an identity in
// creation order. Unknown identities yield an empty list, not an error.
func (s *Service) GetIdentityCredentials(ctx context.Context, identityID uint64) ([]uint64, error) {
	ids, err := s.store.ListIdentityCredentials(ctx, identityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	return ids, nil
}

// CheckIdentityStatus reports the tri-state status of an address: none,
// deactivated, or active. Never fails for unknown addresses. Served from the
// status cache when one is configured.
func (s *Service) CheckIdentityStatus(ctx context.Context, addr domain.Address) (models.StatusReport, error) {
	if s.cache != nil {
		if report, ok := s.cache.Get(ctx, addr.String()); ok {
			return report, nil
		}
		// Fill the cache under the serialization point so a concurrent
		// mutation's invalidation cannot land between the store read and
		// the Set, which would pin a stale report until the TTL expires.
		// Only the miss path pays for the lock.
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	report, err := s.statusReport(ctx, addr)
	if err != nil {
		return models.StatusReport{}, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, addr.String(), report)
	}
	return report, nil
}

func (s *Service) statusReport(ctx context.Context, addr domain.Address) (models.StatusReport, error) {
	report := models.StatusReport{Status: models.StatusNone}
	id, ok, err := s.store.IdentityIDByAddress(ctx, addr)
	if err != nil {
		return models.StatusReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve address index")
	}
	if ok {
		identity, err := s.loadIdentity(ctx, id)
		if err != nil {
			return models.StatusReport{}, err
		}
		report.HasIdentity = true
		report.Verified = identity.Verified
		report.ReputationScore = identity.ReputationScore
		if identity.Active {
			report.Status = models.StatusActive
		} else {
			report.Status = models.StatusDeactivated
		}
	}
	return report, nil
}

// Totals exposes the ever-increasing entity counters.
func (s *Service) Totals(ctx context.Context) (store.Counters, error) {
	counters, err := s.store.Counters(ctx)
	if err != nil {
		return store.Counters{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read counters")
	}
	return counters, nil
}
