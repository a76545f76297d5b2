package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"selfid/internal/registry/models"
	"selfid/pkg/domain"
	"selfid/pkg/platform/sentinel"
)

// InMemory keeps the registry state in process memory for tests and dev mode.
// Individual methods are safe for concurrent use; operation-level atomicity
// comes from the service's serialization point, which validates everything
// before the first write.
type InMemory struct {
	mu           sync.RWMutex
	identities   map[uint64]*models.Identity
	addressIndex map[domain.Address]uint64
	endorsements map[uint64]*models.Endorsement
	credentials  map[uint64]*models.Credential
	verifiers    map[domain.Address]int // address -> insertion order
	verifierSeq  int

	identityEndorsements map[uint64][]uint64
	identityCredentials  map[uint64][]uint64

	counters Counters
}

// NewInMemory constructs an empty in-memory registry store.
func NewInMemory() *InMemory {
	return &InMemory{
		identities:           make(map[uint64]*models.Identity),
		addressIndex:         make(map[domain.Address]uint64),
		endorsements:         make(map[uint64]*models.Endorsement),
		credentials:          make(map[uint64]*models.Credential),
		verifiers:            make(map[domain.Address]int),
		identityEndorsements: make(map[uint64][]uint64),
		identityCredentials:  make(map[uint64][]uint64),
	}
}

// MemorySnapshot is a full copy of an InMemory store's state, captured by
// Snapshot and applied back by Restore.
type MemorySnapshot struct {
	identities   map[uint64]*models.Identity
	addressIndex map[domain.Address]uint64
	endorsements map[uint64]*models.Endorsement
	credentials  map[uint64]*models.Credential
	verifiers    map[domain.Address]int
	verifierSeq  int

	identityEndorsements map[uint64][]uint64
	identityCredentials  map[uint64][]uint64

	counters Counters
}

// Snapshot deep-copies the store's state so a failed operation can be rolled
// back. The copy is consistent only while no other mutator runs, which the
// service's serialization point guarantees.
func (s *InMemory) Snapshot() MemorySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := MemorySnapshot{
		identities:           make(map[uint64]*models.Identity, len(s.identities)),
		addressIndex:         make(map[domain.Address]uint64, len(s.addressIndex)),
		endorsements:         make(map[uint64]*models.Endorsement, len(s.endorsements)),
		credentials:          make(map[uint64]*models.Credential, len(s.credentials)),
		verifiers:            make(map[domain.Address]int, len(s.verifiers)),
		verifierSeq:          s.verifierSeq,
		identityEndorsements: make(map[uint64][]uint64, len(s.identityEndorsements)),
		identityCredentials:  make(map[uint64][]uint64, len(s.identityCredentials)),
		counters:             s.counters,
	}
	for id, identity := range s.identities {
		cp := *identity
		snap.identities[id] = &cp
	}
	for addr, id := range s.addressIndex {
		snap.addressIndex[addr] = id
	}
	for id, endorsement := range s.endorsements {
		cp := *endorsement
		snap.endorsements[id] = &cp
	}
	for id, credential := range s.credentials {
		cp := *credential
		snap.credentials[id] = &cp
	}
	for addr, seq := range s.verifiers {
		snap.verifiers[addr] = seq
	}
	for id, ids := range s.identityEndorsements {
		snap.identityEndorsements[id] = append([]uint64(nil), ids...)
	}
	for id, ids := range s.identityCredentials {
		snap.identityCredentials[id] = append([]uint64(nil), ids...)
	}
	return snap
}

// Restore replaces the store's state with a previously captured snapshot.
func (s *InMemory) Restore(snap MemorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities = snap.identities
	s.addressIndex = snap.addressIndex
	s.endorsements = snap.endorsements
	s.credentials = snap.credentials
	s.verifiers = snap.verifiers
	s.verifierSeq = snap.verifierSeq
	s.identityEndorsements = snap.identityEndorsements
	s.identityCredentials = snap.identityCredentials
	s.counters = snap.counters
}

func (s *InMemory) Counters(_ context.Context) (Counters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters, nil
}

func (s *InMemory) CreateIdentity(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.addressIndex[identity.Owner]; taken {
		return fmt.Errorf("address already mapped to an identity: %w", sentinel.ErrConflict)
	}
	cp := *identity
	s.identities[identity.ID] = &cp
	s.addressIndex[identity.Owner] = identity.ID
	s.counters.Identities++
	return nil
}

func (s *InMemory) GetIdentity(_ context.Context, id uint64) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[id]
	if !ok {
		return nil, fmt.Errorf("identity %d: %w", id, sentinel.ErrNotFound)
	}
	cp := *identity
	return &cp, nil
}

func (s *InMemory) UpdateIdentity(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[identity.ID]; !ok {
		return fmt.Errorf("identity %d: %w", identity.ID, sentinel.ErrNotFound)
	}
	cp := *identity
	s.identities[identity.ID] = &cp
	return nil
}

func (s *InMemory) IdentityIDByAddress(_ context.Context, addr domain.Address) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.addressIndex[addr]
	return id, ok, nil
}

func (s *InMemory) ReindexAddress(_ context.Context, oldOwner, newOwner domain.Address, identityID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.addressIndex[newOwner]; taken {
		return fmt.Errorf("new owner already mapped to an identity: %w", sentinel.ErrConflict)
	}
	delete(s.addressIndex, oldOwner)
	s.addressIndex[newOwner] = identityID
	return nil
}

func (s *InMemory) AppendEndorsement(_ context.Context, endorsement *models.Endorsement, endorsedIdentityID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *endorsement
	s.endorsements[endorsement.ID] = &cp
	s.identityEndorsements[endorsedIdentityID] = append(s.identityEndorsements[endorsedIdentityID], endorsement.ID)
	s.counters.Endorsements++
	return nil
}

func (s *InMemory) GetEndorsement(_ context.Context, id uint64) (*models.Endorsement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	endorsement, ok := s.endorsements[id]
	if !ok {
		return nil, fmt.Errorf("endorsement %d: %w", id, sentinel.ErrNotFound)
	}
	cp := *endorsement
	return &cp, nil
}

func (s *InMemory) ListIdentityEndorsements(_ context.Context, identityID uint64) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.identityEndorsements[identityID]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out, nil
}

func (s *InMemory) AppendCredential(_ context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *credential
	s.credentials[credential.ID] = &cp
	s.identityCredentials[credential.IdentityID] = append(s.identityCredentials[credential.IdentityID], credential.ID)
	s.counters.Credentials++
	return nil
}

func (s *InMemory) GetCredential(_ context.Context, id uint64) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credential, ok := s.credentials[id]
	if !ok {
		return nil, fmt.Errorf("credential %d: %w", id, sentinel.ErrNotFound)
	}
	cp := *credential
	return &cp, nil
}

func (s *InMemory) ListIdentityCredentials(_ context.Context, identityID uint64) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.identityCredentials[identityID]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out, nil
}

func (s *InMemory) AddTrustedVerifier(_ context.Context, addr domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.verifiers[addr]; !ok {
		s.verifiers[addr] = s.verifierSeq
		s.verifierSeq++
	}
	return nil
}

func (s *InMemory) RemoveTrustedVerifier(_ context.Context, addr domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.verifiers, addr)
	return nil
}

func (s *InMemory) IsTrustedVerifier(_ context.Context, addr domain.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.verifiers[addr]
	return ok, nil
}

func (s *InMemory) ListTrustedVerifiers(_ context.Context) ([]domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Address, 0, len(s.verifiers))
	for addr := range s.verifiers {
		out = append(out, addr)
	}
	// Insertion order, not map order.
	sort.Slice(out, func(i, j int) bool {
		return s.verifiers[out[i]] < s.verifiers[out[j]]
	})
	return out, nil
}
