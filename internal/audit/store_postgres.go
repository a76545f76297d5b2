package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"selfid/pkg/domain"
	txcontext "selfid/pkg/platform/tx"
)

// PostgresStore persists audit events in the audit_events table, which doubles
// as the transactional outbox: rows are written in the same transaction as the
// triggering state change and relayed to Kafka by the outbox relay, which
// stamps published_at.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_events (id, event_type, identity_id, caller, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var identityID *uint64
	if event.IdentityID != 0 {
		identityID = &event.IdentityID
	}
	_, err = s.execer(ctx).ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		identityID,
		event.Caller.String(),
		payload,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT payload FROM audit_events
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) ListByIdentity(ctx context.Context, identityID uint64) ([]Event, error) {
	query := `
		SELECT payload FROM audit_events
		WHERE identity_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// PendingEntry is an unpublished outbox row handed to the relay.
type PendingEntry struct {
	ID      uuid.UUID
	Key     domain.Address
	Payload []byte
}

// ListPending returns unpublished events in commit order for the relay.
func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]PendingEntry, error) {
	query := `
		SELECT id, caller, payload FROM audit_events
		WHERE published_at IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending audit events: %w", err)
	}
	defer rows.Close()

	var entries []PendingEntry
	for rows.Next() {
		var entry PendingEntry
		var caller string
		if err := rows.Scan(&entry.ID, &caller, &entry.Payload); err != nil {
			return nil, fmt.Errorf("scan pending audit event: %w", err)
		}
		entry.Key = domain.Address(caller)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending audit events: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps relayed events so they are never re-published.
func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE audit_events SET published_at = NOW()
		WHERE id = ANY($1)
	`
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}
	if _, err := s.db.ExecContext(ctx, query, pq.Array(idStrings)); err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("unmarshal audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
