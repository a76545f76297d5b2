//go:build integration

// Package containers starts throwaway infrastructure for integration tests.
// Everything here sits behind the integration build tag so unit test runs
// never touch Docker.
package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers Postgres instance.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	DB        *sql.DB
}

// NewPostgresContainer starts a Postgres container and opens a connection.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("selfid_test"),
		tcpostgres.WithUsername("selfid"),
		tcpostgres.WithPassword("selfid"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})

	return &PostgresContainer{
		Container: container,
		URL:       url,
		DB:        db,
	}
}

// TruncateAll clears every registry table. Use between tests for isolation.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `
		TRUNCATE identities, address_index, endorsements, credentials,
		         trusted_verifiers, audit_events;
		UPDATE counters
		SET total_identities = 0, total_endorsements = 0, total_credentials = 0;
	`)
	return err
}
