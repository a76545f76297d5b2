package service

import (
	"selfid/internal/audit"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

func (s *ServiceSuite) TestAddTrustedVerifier() {
	s.Run("only the owner can grant standing", func() {
		err := s.svc.AddTrustedVerifier(s.ctx, aliceAddr, verifierAddr)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))

		verifiers, err := s.svc.ListTrustedVerifiers(s.ctx)
		s.Require().NoError(err)
		s.Empty(verifiers)
	})

	s.Run("granted verifier can verify identities", func() {
		s.Require().NoError(s.svc.AddTrustedVerifier(s.ctx, ownerAddr, verifierAddr))

		verifiers, err := s.svc.ListTrustedVerifiers(s.ctx)
		s.Require().NoError(err)
		s.Equal([]domain.Address{verifierAddr}, verifiers)

		aliceID := s.register(aliceAddr)
		s.Require().NoError(s.svc.VerifyIdentity(s.ctx, verifierAddr, aliceID))
	})

	s.Run("re-adding a member is rejected", func() {
		err := s.svc.AddTrustedVerifier(s.ctx, ownerAddr, verifierAddr)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	s.Run("null address and the owner are rejected", func() {
		err := s.svc.AddTrustedVerifier(s.ctx, ownerAddr, domain.ZeroAddress)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))

		// The owner is trusted implicitly and never enters the stored set.
		err = s.svc.AddTrustedVerifier(s.ctx, ownerAddr, ownerAddr)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestRemoveTrustedVerifier() {
	s.Require().NoError(s.svc.AddTrustedVerifier(s.ctx, ownerAddr, verifierAddr))

	s.Run("only the owner can revoke standing", func() {
		err := s.svc.RemoveTrustedVerifier(s.ctx, aliceAddr, verifierAddr)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	s.Run("removing the owner is always rejected", func() {
		err := s.svc.RemoveTrustedVerifier(s.ctx, ownerAddr, ownerAddr)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	s.Run("revoked verifier loses standing immediately", func() {
		s.Require().NoError(s.svc.RemoveTrustedVerifier(s.ctx, ownerAddr, verifierAddr))

		verifiers, err := s.svc.ListTrustedVerifiers(s.ctx)
		s.Require().NoError(err)
		s.Empty(verifiers)

		aliceID := s.register(aliceAddr)
		err = s.svc.VerifyIdentity(s.ctx, verifierAddr, aliceID)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	s.Run("removing a non-member is a no-op", func() {
		s.Require().NoError(s.svc.RemoveTrustedVerifier(s.ctx, ownerAddr, verifierAddr))
	})
}

func (s *ServiceSuite) TestVerifierEvents() {
	s.Require().NoError(s.svc.AddTrustedVerifier(s.ctx, ownerAddr, verifierAddr))
	s.Require().NoError(s.svc.RemoveTrustedVerifier(s.ctx, ownerAddr, verifierAddr))

	events := s.auditLog.All()
	s.Require().Len(events, 2)
	s.Equal(audit.EventTrustedVerifierAdded, events[0].Type)
	s.Equal(audit.EventTrustedVerifierRemoved, events[1].Type)
	for _, e := range events {
		s.Equal(ownerAddr, e.Caller)
		s.Equal(verifierAddr, e.Address)
		s.NotEqual("", e.ID.String())
	}
}
