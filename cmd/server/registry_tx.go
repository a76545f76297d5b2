package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "selfid/pkg/domain-errors"
	txcontext "selfid/pkg/platform/tx"
)

const defaultRegistryTxTimeout = 5 * time.Second

// registryPostgresTx runs a ledger operation inside one Postgres transaction.
// The transaction travels in ctx, so the registry store and the audit outbox
// both join it and the state change commits together with its audit event.
type registryPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newRegistryPostgresTx(db *sql.DB) *registryPostgresTx {
	return &registryPostgresTx{db: db}
}

func (t *registryPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultRegistryTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
