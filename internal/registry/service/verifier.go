package service

import (
	"context"

	"selfid/internal/audit"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

// AddTrustedVerifier grants verifier standing to an address. Owner only.
func (s *Service) AddTrustedVerifier(ctx context.Context, caller, addr domain.Address) error {
	err := s.mutate(ctx, "registry.AddTrustedVerifier", func(ctx context.Context) error {
		inSet, err := s.store.IsTrustedVerifier(ctx, addr)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check verifier set")
		}
		if err := s.policy.AuthorizeVerifierAddition(caller, addr, inSet); err != nil {
			return err
		}

		if err := s.store.AddTrustedVerifier(ctx, addr); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add trusted verifier")
		}

		if err := s.emit(ctx, audit.Event{
			Type:      audit.EventTrustedVerifierAdded,
			Timestamp: s.now(),
			Caller:    caller,
			Address:   addr,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit event")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, string(audit.EventTrustedVerifierAdded),
		"verifier", addr.String(),
	)
	return nil
}

// RemoveTrustedVerifier revokes verifier standing. Owner only; removing a
// non-member is a no-op, removing the owner is always rejected.
func (s *Service) RemoveTrustedVerifier(ctx context.Context, caller, addr domain.Address) error {
	err := s.mutate(ctx, "registry.RemoveTrustedVerifier", func(ctx context.Context) error {
		if err := s.policy.AuthorizeVerifierRemoval(caller, addr); err != nil {
			return err
		}

		if err := s.store.RemoveTrustedVerifier(ctx, addr); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove trusted verifier")
		}

		if err := s.emit(ctx, audit.Event{
			Type:      audit.EventTrustedVerifierRemoved,
			Timestamp: s.now(),
			Caller:    caller,
			Address:   addr,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit event")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, string(audit.EventTrustedVerifierRemoved),
		"verifier", addr.String(),
	)
	return nil
}

// ListTrustedVerifiers returns the persisted verifier set. The owner is
// trusted implicitly and is not part of the stored set.
func (s *Service) ListTrustedVerifiers(ctx context.Context) ([]domain.Address, error) {
	verifiers, err := s.store.ListTrustedVerifiers(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list trusted verifiers")
	}
	return verifiers, nil
}
