package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about stored records, not validation
// failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a uniqueness constraint would be violated
// - ErrInvalidState: record is in the wrong state for the requested operation
// - ErrUnavailable: backing service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
