// Package audit is the append-only domain event stream. One event is emitted
// per committed state transition, in commit order; consumers may rely on that
// ordering for observability and indexing.
package audit

import (
	"time"

	"github.com/google/uuid"

	"selfid/pkg/domain"
)

// EventType names a registry state transition.
type EventType string

const (
	EventIdentityCreated              EventType = "identity.created"
	EventIdentityVerified             EventType = "identity.verified"
	EventIdentityOwnershipTransferred EventType = "identity.ownership_transferred"
	EventIdentityDeactivated          EventType = "identity.deactivated"
	EventEndorsementGiven             EventType = "endorsement.given"
	EventCredentialAdded              EventType = "credential.added"
	EventReputationUpdated            EventType = "reputation.updated"
	EventTrustedVerifierAdded         EventType = "verifier.added"
	EventTrustedVerifierRemoved       EventType = "verifier.removed"
)

// Event is emitted from domain logic to capture one state transition. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// Optional fields are pointers so consumers can distinguish "not applicable"
// from a zero value (a reputation score of 0 is meaningful).
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Caller    domain.Address `json:"caller"`
	// IdentityID is the identity the event concerns; 0 for events that only
	// concern the verifier set.
	IdentityID uint64 `json:"identity_id,omitempty"`
	// RecordID is the endorsement or credential id for ledger-append events.
	RecordID *uint64 `json:"record_id,omitempty"`
	// Score is the new reputation score for reputation.updated events.
	Score *int `json:"score,omitempty"`
	// Address is the verifier added/removed or the new owner on transfer.
	Address   domain.Address `json:"address,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}
