// Package service implements the registry ledger: every mutating operation
// validates its preconditions against the access policy and current state,
// then applies its mutations and audit events atomically. Effects are
// serialized through a single mutex, so each operation observes a consistent
// snapshot and commits as-if-serial regardless of caller concurrency.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"selfid/internal/audit"
	"selfid/internal/platform/metrics"
	"selfid/internal/registry/access"
	"selfid/internal/registry/models"
	"selfid/internal/registry/store"
	dErrors "selfid/pkg/domain-errors"
	"selfid/pkg/requestcontext"
)

// AuditPublisher appends one event per committed state transition, inside the
// operation's commit.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TxRunner wraps an operation's reads and writes in one atomic unit. The
// Postgres runner opens a transaction and threads it through ctx; the
// in-memory runner snapshots store state and rolls back on failure.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// StatusCache is the optional read cache for identity status checks.
type StatusCache interface {
	Get(ctx context.Context, addr string) (models.StatusReport, bool)
	Set(ctx context.Context, addr string, report models.StatusReport)
	Invalidate(ctx context.Context, addrs ...string)
}

// Service orchestrates the identity registry.
type Service struct {
	// mu is the serialization point: one mutating operation at a time, in
	// submission order. Reads go around it; they only ever see committed
	// state because writes publish through the store's own locking.
	mu sync.Mutex

	store  store.Store
	policy *access.Policy
	tx     TxRunner

	logger  *slog.Logger
	auditor AuditPublisher
	metrics *metrics.Metrics
	cache   StatusCache
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithStatusCache(cache StatusCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithClock overrides the time source. Tests use it to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs the registry service.
func New(st store.Store, policy *access.Policy, tx TxRunner, opts ...Option) *Service {
	s := &Service{
		store:  st,
		policy: policy,
		tx:     tx,
		tracer: otel.Tracer("selfid/registry"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// mutate is the common shell for mutating operations: serialize, trace, run
// the operation atomically, and account for rejections.
func (s *Service) mutate(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.tx.RunInTx(ctx, fn)
	if err != nil {
		s.countRejection(err)
	}
	return err
}

func (s *Service) countRejection(err error) {
	if s.metrics != nil {
		s.metrics.OperationsRejected.WithLabelValues(string(dErrors.GetCode(err))).Inc()
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditor == nil {
		return nil
	}
	event.RequestID = requestcontext.RequestID(ctx)
	return s.auditor.Emit(ctx, event)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) invalidateStatus(ctx context.Context, addrs ...string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, addrs...)
	}
}
