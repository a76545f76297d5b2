package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"selfid/internal/audit"
	auditrelay "selfid/internal/audit/relay"
	"selfid/internal/platform/config"
	"selfid/internal/platform/httpserver"
	"selfid/internal/platform/logger"
	"selfid/internal/platform/metrics"
	"selfid/internal/platform/middleware"
	platformredis "selfid/internal/platform/redis"
	"selfid/internal/registry/access"
	"selfid/internal/registry/cache"
	"selfid/internal/registry/handler"
	"selfid/internal/registry/service"
	"selfid/internal/registry/store"
	"selfid/pkg/domain"
)

// main wires dependencies and the server lifecycle. Everything with behavior
// lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ownerAddr, err := domain.ParseAddress(cfg.OwnerAddress)
	if err != nil {
		log.Error("invalid SELFID_OWNER_ADDRESS", "error", err)
		os.Exit(1)
	}
	policy, err := access.New(ownerAddr)
	if err != nil {
		log.Error("invalid registry owner", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		registryStore store.Store
		auditStore    audit.Store
		outbox        auditrelay.Outbox
		txRunner      service.TxRunner
		db            *sql.DB
	)
	if cfg.Postgres.URL != "" {
		db, err = sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := store.EnsureSchema(ctx, db); err != nil {
			log.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		registryStore = store.NewPostgres(db)
		pgAudit := audit.NewPostgres(db)
		auditStore = pgAudit
		outbox = pgAudit
		txRunner = newRegistryPostgresTx(db)
		log.Info("using postgres store")
	} else {
		memStore := store.NewInMemory()
		memAudit := audit.NewInMemoryStore()
		registryStore = memStore
		auditStore = memAudit
		txRunner = service.NewMemoryTxRunner(memStore, memAudit)
		log.Warn("no SELFID_POSTGRES_URL set, using in-memory store")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditPublisher := audit.NewPublisher(auditStore)
	opts := []service.Option{
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(metrics.New()),
	}
	if redisClient != nil {
		opts = append(opts, service.WithStatusCache(cache.New(redisClient, cfg.Redis.StatusTTL, log)))
	}
	svc := service.New(registryStore, policy, txRunner, opts...)

	validator := middleware.NewPrincipalValidator(cfg.JWTSigningKey)
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	handler.New(svc, auditPublisher, log).Register(router, middleware.RequirePrincipal(validator, log))
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", healthHandler(db, redisClient))

	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting selfid registry", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if len(cfg.Kafka.Brokers) > 0 && outbox != nil {
		relay, err := auditrelay.New(cfg.Kafka, outbox, log)
		if err != nil {
			log.Error("failed to start audit relay", "error", err)
			os.Exit(1)
		}
		group.Go(func() error {
			return relay.Run(ctx)
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func healthHandler(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
