package service

import (
	"fmt"
	"sync"

	"selfid/internal/audit"
	"selfid/internal/registry/models"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

func (s *ServiceSuite) TestGiveEndorsement() {
	aliceID := s.register(aliceAddr)
	bobID := s.register(bobAddr)

	s.Run("weight derives from the endorser's score", func() {
		// Alice sits at the initial score of 100, so weight is 10.
		id, err := s.svc.GiveEndorsement(s.ctx, aliceAddr, bobAddr, "technical", "solid work")
		s.Require().NoError(err)
		s.Equal(uint64(0), id)

		endorsement, err := s.svc.GetEndorsement(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(10, endorsement.Weight)
		s.Equal(aliceAddr, endorsement.Endorser)
		s.Equal(bobAddr, endorsement.Endorsed)

		bob, err := s.svc.GetIdentity(s.ctx, bobID)
		s.Require().NoError(err)
		s.Equal(110, bob.ReputationScore)
		s.Equal(uint64(1), bob.EndorsementCount)

		ids, err := s.svc.GetIdentityEndorsements(s.ctx, bobID)
		s.Require().NoError(err)
		s.Equal([]uint64{id}, ids)

		totals, err := s.svc.Totals(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(1), totals.Endorsements)
	})

	s.Run("later score changes never touch recorded weight", func() {
		s.setScore(aliceID, 500)

		id, err := s.svc.GiveEndorsement(s.ctx, aliceAddr, bobAddr, "technical", "still solid")
		s.Require().NoError(err)

		second, err := s.svc.GetEndorsement(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(50, second.Weight)

		first, err := s.svc.GetEndorsement(s.ctx, 0)
		s.Require().NoError(err)
		s.Equal(10, first.Weight)
	})

	s.Run("self endorsement is rejected", func() {
		_, err := s.svc.GiveEndorsement(s.ctx, aliceAddr, aliceAddr, "technical", "me")
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	s.Run("empty category or message is rejected", func() {
		_, err := s.svc.GiveEndorsement(s.ctx, aliceAddr, bobAddr, "", "msg")
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
		_, err = s.svc.GiveEndorsement(s.ctx, aliceAddr, bobAddr, "technical", "")
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	s.Run("both parties need identities", func() {
		_, err := s.svc.GiveEndorsement(s.ctx, carolAddr, bobAddr, "technical", "hi")
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
		_, err = s.svc.GiveEndorsement(s.ctx, aliceAddr, carolAddr, "technical", "hi")
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})

	s.Run("low-reputation endorser is rejected with no side effects", func() {
		s.setScore(aliceID, 40)
		before, err := s.svc.Totals(s.ctx)
		s.Require().NoError(err)

		_, err = s.svc.GiveEndorsement(s.ctx, aliceAddr, bobAddr, "technical", "weak standing")
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))

		after, err := s.svc.Totals(s.ctx)
		s.Require().NoError(err)
		s.Equal(before.Endorsements, after.Endorsements)

		bob, err := s.svc.GetIdentity(s.ctx, bobID)
		s.Require().NoError(err)
		s.Equal(uint64(1), bob.EndorsementCount)
	})

	s.Run("deactivated endorsed identity is rejected", func() {
		s.setScore(aliceID, 100)
		s.Require().NoError(s.svc.DeactivateIdentity(s.ctx, bobAddr, bobID))

		_, err := s.svc.GiveEndorsement(s.ctx, aliceAddr, bobAddr, "technical", "too late")
		s.True(dErrors.Is(err, dErrors.CodeInvalidState))
	})
}

func (s *ServiceSuite) TestGiveEndorsementEventOrder() {
	s.register(aliceAddr)
	bobID := s.register(bobAddr)

	_, err := s.svc.GiveEndorsement(s.ctx, aliceAddr, bobAddr, "technical", "ordered")
	s.Require().NoError(err)

	types := s.eventTypes()
	s.Equal([]audit.EventType{
		audit.EventIdentityCreated,
		audit.EventIdentityCreated,
		audit.EventEndorsementGiven,
		audit.EventReputationUpdated,
	}, types)

	history, err := s.auditLog.ListByIdentity(s.ctx, bobID)
	s.Require().NoError(err)
	s.Len(history, 3)
}

func (s *ServiceSuite) TestGetEndorsementNotFound() {
	_, err := s.svc.GetEndorsement(s.ctx, 0)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

// TestConcurrentEndorsementsNoLostUpdate submits concurrent endorsements for
// one identity and verifies every reputation delta lands: serialization must
// not drop a mutation.
func (s *ServiceSuite) TestConcurrentEndorsementsNoLostUpdate() {
	const endorsers = 8

	targetID := s.register(aliceAddr)

	addrs := make([]domain.Address, endorsers)
	for i := range addrs {
		addrs[i] = domain.Address(fmt.Sprintf("0x%040x", i+0x100))
		s.register(addrs[i])
	}

	var wg sync.WaitGroup
	for _, addr := range addrs {
		wg.Add(1)
		go func(endorser domain.Address) {
			defer wg.Done()
			_, err := s.svc.GiveEndorsement(s.ctx, endorser, aliceAddr, "technical", "concurrent")
			s.NoError(err)
		}(addr)
	}
	wg.Wait()

	identity, err := s.svc.GetIdentity(s.ctx, targetID)
	s.Require().NoError(err)

	// Every endorser held the initial score of 100, so each delta is 10.
	s.Equal(models.ReputationInitial+endorsers*10, identity.ReputationScore)
	s.Equal(uint64(endorsers), identity.EndorsementCount)

	totals, err := s.svc.Totals(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(endorsers), totals.Endorsements)

	ids, err := s.svc.GetIdentityEndorsements(s.ctx, targetID)
	s.Require().NoError(err)
	s.Len(ids, endorsers)
}
