package service

import (
	"context"

	"selfid/internal/audit"
	"selfid/internal/registry/store"
)

// MemoryTxRunner gives the in-memory path the same all-or-nothing contract
// the Postgres runner gets from database transactions: registry state is
// snapshotted before the operation and restored when it fails, and audit
// appends from the failed attempt are unwound. Rollback is race-free because
// the service's serialization point admits one mutator at a time.
type MemoryTxRunner struct {
	store    *store.InMemory
	auditLog *audit.InMemoryStore
}

// NewMemoryTxRunner constructs a runner over the in-memory stores. auditLog
// may be nil when no audit store is wired.
func NewMemoryTxRunner(st *store.InMemory, auditLog *audit.InMemoryStore) *MemoryTxRunner {
	return &MemoryTxRunner{store: st, auditLog: auditLog}
}

func (r *MemoryTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := r.store.Snapshot()
	auditMark := 0
	if r.auditLog != nil {
		auditMark = r.auditLog.Len()
	}

	if err := fn(ctx); err != nil {
		r.store.Restore(snap)
		if r.auditLog != nil {
			r.auditLog.Truncate(auditMark)
		}
		return err
	}
	return nil
}
