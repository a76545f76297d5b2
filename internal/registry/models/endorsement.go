package models

import (
	"time"

	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
)

// Endorsement is a weighted peer attestation from one identity to another.
// Immutable once created apart from the Active flag; the baseline surface
// never clears that flag, so treat the ledger as append-only.
type Endorsement struct {
	ID        uint64         `json:"id"`
	Endorser  domain.Address `json:"endorser"`
	Endorsed  domain.Address `json:"endorsed"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	// Weight is derived from the endorser's reputation at creation time and
	// never re-derived.
	Weight int  `json:"weight"`
	Active bool `json:"active"`
}

// NewEndorsement constructs an endorsement record.
func NewEndorsement(id uint64, endorser, endorsed domain.Address, category, message string, weight int, now time.Time) (*Endorsement, error) {
	if endorser.IsZero() || endorsed.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "endorsement parties cannot be the null address")
	}
	if endorser == endorsed {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "an identity cannot endorse itself")
	}
	if category == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "endorsement category cannot be empty")
	}
	if message == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "endorsement message cannot be empty")
	}
	if weight < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "endorsement weight cannot be negative")
	}
	return &Endorsement{
		ID:        id,
		Endorser:  endorser,
		Endorsed:  endorsed,
		Category:  category,
		Message:   message,
		Timestamp: now,
		Weight:    weight,
		Active:    true,
	}, nil
}
