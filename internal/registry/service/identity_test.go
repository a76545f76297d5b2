package service

import (
	"context"

	"selfid/internal/audit"
	"selfid/internal/registry/models"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

func (s *ServiceSuite) TestCreateIdentity() {
	s.Run("registers with initial state", func() {
		id := s.register(aliceAddr)
		s.Equal(uint64(1), id)

		identity, err := s.svc.GetIdentity(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(aliceAddr, identity.Owner)
		s.Equal(models.ReputationInitial, identity.ReputationScore)
		s.False(identity.Verified)
		s.True(identity.Active)
		s.Zero(identity.EndorsementCount)
		s.Equal(s.clock, identity.CreatedAt)

		totals, err := s.svc.Totals(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(1), totals.Identities)
	})

	s.Run("ids are sequential", func() {
		s.Equal(uint64(2), s.register(bobAddr))
		s.Equal(uint64(3), s.register(carolAddr))
	})

	s.Run("rejects a second identity per address", func() {
		_, err := s.svc.CreateIdentity(s.ctx, aliceAddr, "Alice Again", "alice@example.com", docHash)
		s.True(dErrors.Is(err, dErrors.CodeConflict))
	})

	s.Run("rejects empty name, email, and zero hash", func() {
		_, err := s.svc.CreateIdentity(s.ctx, verifierAddr, "", "v@example.com", docHash)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))

		_, err = s.svc.CreateIdentity(s.ctx, verifierAddr, "Vera", "", docHash)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))

		_, err = s.svc.CreateIdentity(s.ctx, verifierAddr, "Vera", "v@example.com", domain.ZeroHash)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))

		// Nothing committed, no events emitted for the rejections.
		totals, err := s.svc.Totals(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(3), totals.Identities)
	})

	s.Run("rejects the null address", func() {
		_, err := s.svc.CreateIdentity(s.ctx, domain.ZeroAddress, "Zero", "zero@example.com", docHash)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestVerifyIdentity() {
	id := s.register(aliceAddr)

	s.Run("non-verifier is rejected", func() {
		err := s.svc.VerifyIdentity(s.ctx, bobAddr, id)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	s.Run("owner verifies and reputation rises", func() {
		s.Require().NoError(s.svc.VerifyIdentity(s.ctx, ownerAddr, id))

		identity, err := s.svc.GetIdentity(s.ctx, id)
		s.Require().NoError(err)
		s.True(identity.Verified)
		s.Equal(150, identity.ReputationScore)
	})

	s.Run("re-verifying fails and leaves the score alone", func() {
		err := s.svc.VerifyIdentity(s.ctx, ownerAddr, id)
		s.True(dErrors.Is(err, dErrors.CodeInvalidState))

		identity, err := s.svc.GetIdentity(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(150, identity.ReputationScore)
	})

	s.Run("trusted verifier from the set can verify", func() {
		s.Require().NoError(s.svc.AddTrustedVerifier(s.ctx, ownerAddr, verifierAddr))
		bobID := s.register(bobAddr)
		s.Require().NoError(s.svc.VerifyIdentity(s.ctx, verifierAddr, bobID))
	})

	s.Run("unknown identity is NotFound", func() {
		err := s.svc.VerifyIdentity(s.ctx, ownerAddr, 999)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})

	s.Run("verification saturates at the cap", func() {
		carolID := s.register(carolAddr)
		s.setScore(carolID, 990)

		s.Require().NoError(s.svc.VerifyIdentity(s.ctx, ownerAddr, carolID))
		identity, err := s.svc.GetIdentity(s.ctx, carolID)
		s.Require().NoError(err)
		s.Equal(models.ReputationMax, identity.ReputationScore)
	})
}

func (s *ServiceSuite) TestVerifyIdentityEmitsOrderedEvents() {
	id := s.register(aliceAddr)
	s.Require().NoError(s.svc.VerifyIdentity(s.ctx, ownerAddr, id))

	types := s.eventTypes()
	s.Equal([]audit.EventType{
		audit.EventIdentityCreated,
		audit.EventIdentityVerified,
		audit.EventReputationUpdated,
	}, types)

	events := s.auditLog.All()
	last := events[len(events)-1]
	s.Require().NotNil(last.Score)
	s.Equal(150, *last.Score)
	s.Equal(id, last.IdentityID)
}

func (s *ServiceSuite) TestTransferIdentityOwnership() {
	aliceID := s.register(aliceAddr)

	s.Run("non-owner caller is rejected", func() {
		err := s.svc.TransferIdentityOwnership(s.ctx, bobAddr, aliceID, carolAddr)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	s.Run("null new owner is rejected", func() {
		err := s.svc.TransferIdentityOwnership(s.ctx, aliceAddr, aliceID, domain.ZeroAddress)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	s.Run("occupied target address is rejected and state unchanged", func() {
		bobID := s.register(bobAddr)

		err := s.svc.TransferIdentityOwnership(s.ctx, aliceAddr, aliceID, bobAddr)
		s.True(dErrors.Is(err, dErrors.CodeConflict))

		alice, err := s.svc.GetIdentity(s.ctx, aliceID)
		s.Require().NoError(err)
		s.Equal(aliceAddr, alice.Owner)
		bob, err := s.svc.GetIdentity(s.ctx, bobID)
		s.Require().NoError(err)
		s.Equal(bobAddr, bob.Owner)
	})

	s.Run("transfer repoints owner and index", func() {
		s.Require().NoError(s.svc.TransferIdentityOwnership(s.ctx, aliceAddr, aliceID, carolAddr))

		identity, err := s.svc.GetIdentity(s.ctx, aliceID)
		s.Require().NoError(err)
		s.Equal(carolAddr, identity.Owner)

		// The old address is free again and may re-register.
		newID, err := s.svc.CreateIdentity(s.ctx, aliceAddr, "Alice Two", "alice2@example.com", docHash)
		s.Require().NoError(err)
		s.NotEqual(aliceID, newID)

		// The new owner now controls the identity.
		err = s.svc.TransferIdentityOwnership(s.ctx, aliceAddr, aliceID, verifierAddr)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestDeactivateIdentity() {
	aliceID := s.register(aliceAddr)

	s.Run("stranger cannot deactivate", func() {
		err := s.svc.DeactivateIdentity(s.ctx, bobAddr, aliceID)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	s.Run("identity owner deactivates", func() {
		s.Require().NoError(s.svc.DeactivateIdentity(s.ctx, aliceAddr, aliceID))

		identity, err := s.svc.GetIdentity(s.ctx, aliceID)
		s.Require().NoError(err)
		s.False(identity.Active)
	})

	s.Run("deactivation is terminal", func() {
		err := s.svc.DeactivateIdentity(s.ctx, aliceAddr, aliceID)
		s.True(dErrors.Is(err, dErrors.CodeInvalidState))

		err = s.svc.VerifyIdentity(s.ctx, ownerAddr, aliceID)
		s.True(dErrors.Is(err, dErrors.CodeInvalidState))

		err = s.svc.TransferIdentityOwnership(s.ctx, aliceAddr, aliceID, carolAddr)
		s.True(dErrors.Is(err, dErrors.CodeInvalidState))
	})

	s.Run("the address stays claimed", func() {
		_, err := s.svc.CreateIdentity(s.ctx, aliceAddr, "Alice Again", "alice@example.com", docHash)
		s.True(dErrors.Is(err, dErrors.CodeConflict))
	})

	s.Run("status reports deactivated distinctly", func() {
		report, err := s.svc.CheckIdentityStatus(s.ctx, aliceAddr)
		s.Require().NoError(err)
		s.Equal(models.StatusDeactivated, report.Status)
		s.True(report.HasIdentity)
	})

	s.Run("registry owner can deactivate any identity", func() {
		bobID := s.register(bobAddr)
		s.Require().NoError(s.svc.DeactivateIdentity(s.ctx, ownerAddr, bobID))
	})
}

func (s *ServiceSuite) TestCheckIdentityStatus() {
	s.Run("unknown address reports none without error", func() {
		report, err := s.svc.CheckIdentityStatus(s.ctx, carolAddr)
		s.Require().NoError(err)
		s.Equal(models.StatusNone, report.Status)
		s.False(report.HasIdentity)
	})

	s.Run("active identity reports score and verification", func() {
		id := s.register(aliceAddr)
		s.Require().NoError(s.svc.VerifyIdentity(s.ctx, ownerAddr, id))

		report, err := s.svc.CheckIdentityStatus(s.ctx, aliceAddr)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, report.Status)
		s.True(report.HasIdentity)
		s.True(report.Verified)
		s.Equal(150, report.ReputationScore)
	})
}

// recordingStatusCache is a map-backed StatusCache double. onSet runs inside
// Set when non-nil.
type recordingStatusCache struct {
	entries map[string]models.StatusReport
	onSet   func()
}

func newRecordingStatusCache() *recordingStatusCache {
	return &recordingStatusCache{entries: make(map[string]models.StatusReport)}
}

func (c *recordingStatusCache) Get(_ context.Context, addr string) (models.StatusReport, bool) {
	report, ok := c.entries[addr]
	return report, ok
}

func (c *recordingStatusCache) Set(_ context.Context, addr string, report models.StatusReport) {
	if c.onSet != nil {
		c.onSet()
	}
	c.entries[addr] = report
}

func (c *recordingStatusCache) Invalidate(_ context.Context, addrs ...string) {
	for _, addr := range addrs {
		delete(c.entries, addr)
	}
}

// TestStatusCacheFill pins the cache-fill path: a miss reads the store and
// caches the report under the serialization point, so a mutation's
// invalidation can never land between the read and the Set and pin a stale
// report until the TTL expires.
func (s *ServiceSuite) TestStatusCacheFill() {
	statusCache := newRecordingStatusCache()
	s.svc.cache = statusCache

	id := s.register(aliceAddr)

	held := false
	statusCache.onSet = func() {
		held = !s.svc.mu.TryLock()
		if !held {
			s.svc.mu.Unlock()
		}
	}
	report, err := s.svc.CheckIdentityStatus(s.ctx, aliceAddr)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, report.Status)
	s.True(held, "cache fill must hold the serialization lock")

	statusCache.onSet = func() { s.Fail("hit path must not refill the cache") }
	hit, err := s.svc.CheckIdentityStatus(s.ctx, aliceAddr)
	s.Require().NoError(err)
	s.Equal(report, hit)

	// A mutation invalidates; the next miss recaches the fresh state.
	statusCache.onSet = nil
	s.Require().NoError(s.svc.DeactivateIdentity(s.ctx, aliceAddr, id))
	s.NotContains(statusCache.entries, aliceAddr.String())

	refreshed, err := s.svc.CheckIdentityStatus(s.ctx, aliceAddr)
	s.Require().NoError(err)
	s.Equal(models.StatusDeactivated, refreshed.Status)
	s.Equal(models.StatusDeactivated, statusCache.entries[aliceAddr.String()].Status)
}
