package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is the registry's persisted layout. Idempotent so dev and test
// environments can bootstrap without a migration tool.
const schema = `
CREATE TABLE IF NOT EXISTS identities (
	id                BIGINT PRIMARY KEY,
	owner             TEXT NOT NULL,
	name              TEXT NOT NULL,
	email             TEXT NOT NULL,
	document_hash     TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	reputation_score  INT NOT NULL CHECK (reputation_score BETWEEN 0 AND 1000),
	verified          BOOLEAN NOT NULL,
	active            BOOLEAN NOT NULL,
	endorsement_count BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS address_index (
	address     TEXT PRIMARY KEY,
	identity_id BIGINT NOT NULL REFERENCES identities (id)
);

CREATE TABLE IF NOT EXISTS endorsements (
	id                   BIGINT PRIMARY KEY,
	endorser             TEXT NOT NULL,
	endorsed             TEXT NOT NULL,
	category             TEXT NOT NULL,
	message              TEXT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL,
	weight               INT NOT NULL,
	active               BOOLEAN NOT NULL,
	endorsed_identity_id BIGINT NOT NULL REFERENCES identities (id)
);

CREATE INDEX IF NOT EXISTS endorsements_by_identity
	ON endorsements (endorsed_identity_id, id);

CREATE TABLE IF NOT EXISTS credentials (
	id              BIGINT PRIMARY KEY,
	identity_id     BIGINT NOT NULL REFERENCES identities (id),
	credential_type TEXT NOT NULL,
	issuer          TEXT NOT NULL,
	credential_hash TEXT NOT NULL,
	issued_at       TIMESTAMPTZ NOT NULL,
	expires_at      TIMESTAMPTZ,
	verified        BOOLEAN NOT NULL,
	active          BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS credentials_by_identity
	ON credentials (identity_id, id);

CREATE TABLE IF NOT EXISTS trusted_verifiers (
	address  TEXT PRIMARY KEY,
	added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS counters (
	id                 BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
	total_identities   BIGINT NOT NULL DEFAULT 0,
	total_endorsements BIGINT NOT NULL DEFAULT 0,
	total_credentials  BIGINT NOT NULL DEFAULT 0
);

INSERT INTO counters (id) VALUES (TRUE) ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS audit_events (
	id           UUID PRIMARY KEY,
	event_type   TEXT NOT NULL,
	identity_id  BIGINT,
	caller       TEXT NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS audit_events_pending
	ON audit_events (created_at) WHERE published_at IS NULL;

CREATE INDEX IF NOT EXISTS audit_events_by_identity
	ON audit_events (identity_id, created_at);
`

// EnsureSchema creates the registry tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure registry schema: %w", err)
	}
	return nil
}
