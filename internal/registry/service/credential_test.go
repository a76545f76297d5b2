package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/mock/gomock"

	"selfid/internal/audit"
	"selfid/internal/registry/models"
	"selfid/internal/registry/service/mocks"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

var credHash = domain.Hash("0x" + strings.Repeat("cd", 32))

func (s *ServiceSuite) TestAddCredential() {
	aliceID := s.register(aliceAddr)

	s.Run("non-verifier is rejected with no side effects", func() {
		before, err := s.svc.Totals(s.ctx)
		s.Require().NoError(err)

		_, err = s.svc.AddCredential(s.ctx, bobAddr, aliceID, "degree", "MIT", credHash, time.Time{})
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))

		after, err := s.svc.Totals(s.ctx)
		s.Require().NoError(err)
		s.Equal(before, after)
	})

	s.Run("issuance links, scores, and counts", func() {
		id, err := s.svc.AddCredential(s.ctx, ownerAddr, aliceID, "degree", "MIT", credHash, time.Time{})
		s.Require().NoError(err)
		s.Equal(uint64(0), id)

		credential, err := s.svc.GetCredential(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(aliceID, credential.IdentityID)
		s.True(credential.Verified)
		s.True(credential.Active)
		s.True(credential.ExpiresAt.IsZero())

		identity, err := s.svc.GetIdentity(s.ctx, aliceID)
		s.Require().NoError(err)
		s.Equal(120, identity.ReputationScore)

		ids, err := s.svc.GetIdentityCredentials(s.ctx, aliceID)
		s.Require().NoError(err)
		s.Equal([]uint64{id}, ids)

		totals, err := s.svc.Totals(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(1), totals.Credentials)
	})

	s.Run("rejects empty type, issuer, and zero hash", func() {
		_, err := s.svc.AddCredential(s.ctx, ownerAddr, aliceID, "", "MIT", credHash, time.Time{})
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
		_, err = s.svc.AddCredential(s.ctx, ownerAddr, aliceID, "degree", "", credHash, time.Time{})
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
		_, err = s.svc.AddCredential(s.ctx, ownerAddr, aliceID, "degree", "MIT", domain.ZeroHash, time.Time{})
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects expiry not strictly in the future", func() {
		_, err := s.svc.AddCredential(s.ctx, ownerAddr, aliceID, "degree", "MIT", credHash, s.clock.Add(-time.Hour))
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
		_, err = s.svc.AddCredential(s.ctx, ownerAddr, aliceID, "degree", "MIT", credHash, s.clock)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	s.Run("accepts a future expiry and keeps it readable", func() {
		expiry := s.clock.Add(365 * 24 * time.Hour)
		id, err := s.svc.AddCredential(s.ctx, ownerAddr, aliceID, "license", "DMV", credHash, expiry)
		s.Require().NoError(err)

		credential, err := s.svc.GetCredential(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(expiry, credential.ExpiresAt)
		// Expiry is bookkeeping: the registry never deactivates on lapse.
		s.True(credential.Expired(expiry.Add(time.Second)))
		s.True(credential.Active)
	})

	s.Run("unknown identity is NotFound", func() {
		_, err := s.svc.AddCredential(s.ctx, ownerAddr, 999, "degree", "MIT", credHash, time.Time{})
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})

	s.Run("deactivated identity is rejected", func() {
		bobID := s.register(bobAddr)
		s.Require().NoError(s.svc.DeactivateIdentity(s.ctx, bobAddr, bobID))

		_, err := s.svc.AddCredential(s.ctx, ownerAddr, bobID, "degree", "MIT", credHash, time.Time{})
		s.True(dErrors.Is(err, dErrors.CodeInvalidState))
	})
}

// TestAuditFailureAbortsOperation pins the all-or-nothing contract: if the
// audit append cannot commit, the operation must fail.
func (s *ServiceSuite) TestAuditFailureAbortsOperation() {
	ctrl := gomock.NewController(s.T())
	publisher := mocks.NewMockAuditPublisher(ctrl)
	publisher.EXPECT().
		Emit(gomock.Any(), gomock.Any()).
		Return(errors.New("sink unavailable"))

	s.svc.auditor = publisher

	_, err := s.svc.CreateIdentity(s.ctx, carolAddr, "Carol", "carol@example.com", docHash)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeInternal))

	// The failed operation leaves no residue: no identity, no index entry,
	// no counter bump.
	counters, err := s.svc.Totals(s.ctx)
	s.Require().NoError(err)
	s.Zero(counters.Identities)
	_, err = s.svc.GetIdentity(s.ctx, 1)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))

	// A retry with a working sink succeeds instead of hitting a conflict.
	s.svc.auditor = audit.NewPublisher(s.auditLog)
	id, err := s.svc.CreateIdentity(s.ctx, carolAddr, "Carol", "carol@example.com", docHash)
	s.Require().NoError(err)
	s.Equal(uint64(1), id)
}

// flakySink delegates to a real publisher until failAt, then fails every
// emit. Lets a test fail an operation after some events already appended.
type flakySink struct {
	inner  AuditPublisher
	calls  int
	failAt int
}

func (p *flakySink) Emit(ctx context.Context, event audit.Event) error {
	p.calls++
	if p.calls >= p.failAt {
		return errors.New("sink unavailable")
	}
	return p.inner.Emit(ctx, event)
}

// TestAuditFailureMidOperationRollsBack covers the multi-event case:
// VerifyIdentity appends two events, and when the second append fails the
// first must be unwound along with the identity update.
func (s *ServiceSuite) TestAuditFailureMidOperationRollsBack() {
	aliceID := s.register(aliceAddr)
	baseline := s.auditLog.Len()

	s.svc.auditor = &flakySink{inner: audit.NewPublisher(s.auditLog), failAt: 2}

	err := s.svc.VerifyIdentity(s.ctx, ownerAddr, aliceID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeInternal))

	identity, err := s.svc.GetIdentity(s.ctx, aliceID)
	s.Require().NoError(err)
	s.False(identity.Verified)
	s.Equal(models.ReputationInitial, identity.ReputationScore)
	s.Equal(baseline, s.auditLog.Len())
}

func (s *ServiceSuite) TestCredentialEventOrder() {
	aliceID := s.register(aliceAddr)
	_, err := s.svc.AddCredential(s.ctx, ownerAddr, aliceID, "degree", "MIT", credHash, time.Time{})
	s.Require().NoError(err)

	types := s.eventTypes()
	s.Equal([]audit.EventType{
		audit.EventIdentityCreated,
		audit.EventCredentialAdded,
		audit.EventReputationUpdated,
	}, types)
}
