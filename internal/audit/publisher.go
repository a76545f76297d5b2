package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit assigns the event an id and timestamp if missing and appends it. Emit
// is called inside the operation's commit; a failure here aborts the whole
// operation so no state change goes unlogged.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

// ListRecent exposes the newest events for the read surface.
func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// ListByIdentity exposes an identity's full history in commit order.
func (p *Publisher) ListByIdentity(ctx context.Context, identityID uint64) ([]Event, error) {
	return p.store.ListByIdentity(ctx, identityID)
}
