//go:build integration

package store_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"selfid/internal/registry/models"
	"selfid/internal/registry/store"
	"selfid/pkg/domain"
	"selfid/pkg/platform/sentinel"
	"selfid/pkg/testutil/containers"
)

var (
	addrOne   = domain.Address("0x1111111111111111111111111111111111111111")
	addrTwo   = domain.Address("0x2222222222222222222222222222222222222222")
	addrThree = domain.Address("0x3333333333333333333333333333333333333333")
	testHash  = domain.Hash("0x" + strings.Repeat("ab", 32))
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(store.EnsureSchema(context.Background(), s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) newIdentity(id uint64, owner domain.Address) *models.Identity {
	identity, err := models.NewIdentity(id, owner, "Test User", "user@example.com", testHash, time.Now().UTC())
	s.Require().NoError(err)
	return identity
}

func (s *PostgresStoreSuite) TestIdentityRoundTrip() {
	ctx := context.Background()
	created := s.newIdentity(1, addrOne)
	s.Require().NoError(s.store.CreateIdentity(ctx, created))

	got, err := s.store.GetIdentity(ctx, 1)
	s.Require().NoError(err)
	s.Equal(created.Owner, got.Owner)
	s.Equal(created.Name, got.Name)
	s.Equal(created.DocumentHash, got.DocumentHash)
	s.Equal(models.ReputationInitial, got.ReputationScore)
	s.True(got.Active)
	s.False(got.Verified)

	counters, err := s.store.Counters(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1), counters.Identities)

	id, ok, err := s.store.IdentityIDByAddress(ctx, addrOne)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(uint64(1), id)

	got.ReputationScore = 250
	got.Verified = true
	s.Require().NoError(s.store.UpdateIdentity(ctx, got))

	reread, err := s.store.GetIdentity(ctx, 1)
	s.Require().NoError(err)
	s.Equal(250, reread.ReputationScore)
	s.True(reread.Verified)

	_, err = s.store.GetIdentity(ctx, 99)
	s.ErrorIs(err, sentinel.ErrNotFound)

	missing := s.newIdentity(99, addrThree)
	s.ErrorIs(s.store.UpdateIdentity(ctx, missing), sentinel.ErrNotFound)
}

// TestConcurrentAddressClaim verifies the unique-violation translation under
// contention: exactly one identity claims an address.
func (s *PostgresStoreSuite) TestConcurrentAddressClaim() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		identity := s.newIdentity(uint64(i+1), addrOne)
		go func() {
			defer wg.Done()
			err := s.store.CreateIdentity(ctx, identity)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one claim should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestReindexAddress() {
	ctx := context.Background()
	s.Require().NoError(s.store.CreateIdentity(ctx, s.newIdentity(1, addrOne)))
	s.Require().NoError(s.store.CreateIdentity(ctx, s.newIdentity(2, addrTwo)))

	err := s.store.ReindexAddress(ctx, addrOne, addrTwo, 1)
	s.ErrorIs(err, sentinel.ErrConflict)

	s.Require().NoError(s.store.ReindexAddress(ctx, addrOne, addrThree, 1))

	_, ok, err := s.store.IdentityIDByAddress(ctx, addrOne)
	s.Require().NoError(err)
	s.False(ok)

	id, ok, err := s.store.IdentityIDByAddress(ctx, addrThree)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(uint64(1), id)
}

func (s *PostgresStoreSuite) TestEndorsementsRoundTrip() {
	ctx := context.Background()
	s.Require().NoError(s.store.CreateIdentity(ctx, s.newIdentity(1, addrOne)))

	for i, endorser := range []domain.Address{addrTwo, addrThree} {
		endorsement, err := models.NewEndorsement(uint64(i), endorser, addrOne, "technical", "solid work", 10, time.Now().UTC())
		s.Require().NoError(err)
		s.Require().NoError(s.store.AppendEndorsement(ctx, endorsement, 1))
	}

	ids, err := s.store.ListIdentityEndorsements(ctx, 1)
	s.Require().NoError(err)
	s.Equal([]uint64{0, 1}, ids)

	got, err := s.store.GetEndorsement(ctx, 1)
	s.Require().NoError(err)
	s.Equal(addrThree, got.Endorser)
	s.Equal(addrOne, got.Endorsed)
	s.Equal(10, got.Weight)

	counters, err := s.store.Counters(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(2), counters.Endorsements)

	_, err = s.store.GetEndorsement(ctx, 5)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCredentialsRoundTrip() {
	ctx := context.Background()
	s.Require().NoError(s.store.CreateIdentity(ctx, s.newIdentity(1, addrOne)))

	// One credential without expiry, one with.
	forever, err := models.NewCredential(0, 1, "degree", "MIT", testHash, time.Now().UTC(), time.Time{})
	s.Require().NoError(err)
	s.Require().NoError(s.store.AppendCredential(ctx, forever))

	issuedAt := time.Now().UTC().Truncate(time.Microsecond)
	lapsing, err := models.NewCredential(1, 1, "license", "DMV", testHash, issuedAt, issuedAt.Add(24*time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.store.AppendCredential(ctx, lapsing))

	got, err := s.store.GetCredential(ctx, 0)
	s.Require().NoError(err)
	s.True(got.ExpiresAt.IsZero())
	s.True(got.Verified)

	got, err = s.store.GetCredential(ctx, 1)
	s.Require().NoError(err)
	s.True(got.ExpiresAt.Equal(issuedAt.Add(24 * time.Hour)))

	ids, err := s.store.ListIdentityCredentials(ctx, 1)
	s.Require().NoError(err)
	s.Equal([]uint64{0, 1}, ids)

	counters, err := s.store.Counters(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(2), counters.Credentials)
}

func (s *PostgresStoreSuite) TestTrustedVerifiers() {
	ctx := context.Background()

	s.Require().NoError(s.store.AddTrustedVerifier(ctx, addrOne))
	s.Require().NoError(s.store.AddTrustedVerifier(ctx, addrOne)) // idempotent

	ok, err := s.store.IsTrustedVerifier(ctx, addrOne)
	s.Require().NoError(err)
	s.True(ok)

	verifiers, err := s.store.ListTrustedVerifiers(ctx)
	s.Require().NoError(err)
	s.Equal([]domain.Address{addrOne}, verifiers)

	s.Require().NoError(s.store.RemoveTrustedVerifier(ctx, addrOne))
	ok, err = s.store.IsTrustedVerifier(ctx, addrOne)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *PostgresStoreSuite) TestReputationCheckConstraint() {
	ctx := context.Background()
	s.Require().NoError(s.store.CreateIdentity(ctx, s.newIdentity(1, addrOne)))

	got, err := s.store.GetIdentity(ctx, 1)
	s.Require().NoError(err)
	got.ReputationScore = models.ReputationMax + 1

	// The schema backstops the service-level clamp.
	s.Error(s.store.UpdateIdentity(ctx, got))
}
