package audit

import "context"

// Store persists audit events. Append runs inside the same commit as the
// triggering state change: the Postgres store joins the transaction carried
// in ctx, the in-memory store appends under the service's serialization
// point.
type Store interface {
	Append(ctx context.Context, event Event) error
	// ListRecent returns the most recent events, newest first.
	ListRecent(ctx context.Context, limit int) ([]Event, error)
	// ListByIdentity returns every event concerning an identity, oldest
	// first (commit order).
	ListByIdentity(ctx context.Context, identityID uint64) ([]Event, error)
}
