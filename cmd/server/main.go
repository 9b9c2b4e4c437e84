// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"empgate/internal/audit"
	"empgate/internal/details/cache"
	detailsservice "empgate/internal/details/service"
	detailsstore "empgate/internal/details/store"
	"empgate/internal/janitor"
	"empgate/internal/platform/config"
	"empgate/internal/platform/httpserver"
	"empgate/internal/platform/logger"
	"empgate/internal/platform/metrics"
	"empgate/internal/platform/postgres"
	platformredis "empgate/internal/platform/redis"
	"empgate/internal/policy"
	"empgate/internal/security/lockout"
	securityservice "empgate/internal/security/service"
	securitystore "empgate/internal/security/store"
	httptransport "empgate/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store selection: postgres when a database URL is configured, redis
	// when only redis is, in-memory otherwise (dev mode).
	var (
		sessionRepo securitystore.Repository
		employees   detailsstore.EmployeeStore
		auditStore  audit.Store
	)
	switch {
	case cfg.DatabaseURL != "":
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		sessionRepo = securitystore.NewPostgresRepository(db)
		employees = detailsstore.NewPostgresEmployeeStore(db)
		auditStore = audit.NewPostgresStore(db)
	case cfg.RedisURL != "":
		rc, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		sessionRepo = securitystore.NewRedisRepository(rc.Client)
		employees = detailsstore.NewInMemoryEmployeeStore()
		auditStore = audit.NewInMemoryStore()
	default:
		log.Warn("no durable store configured, running in-memory")
		sessionRepo = securitystore.NewInMemoryRepository()
		employees = detailsstore.NewInMemoryEmployeeStore()
		auditStore = audit.NewInMemoryStore()
	}

	auditOpts := []audit.Option{
		audit.WithLogger(log),
		audit.WithMetrics(m),
		audit.WithFlushLimit(cfg.AuditFlushLimit),
	}
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaAuditTopic, log)
		if err != nil {
			log.Error("failed to create kafka audit sink", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		auditOpts = append(auditOpts, audit.WithSink(sink))
	}
	recorder := audit.NewRecorder(auditStore, auditOpts...)

	sessions, err := securityservice.New(sessionRepo,
		securityservice.WithLogger(log),
		securityservice.WithMetrics(m),
		securityservice.WithValidity(cfg.SessionValidity),
	)
	if err != nil {
		log.Error("failed to build session service", "error", err)
		os.Exit(1)
	}

	tracker, err := lockout.New(sessionRepo,
		lockout.WithLogger(log),
		lockout.WithMetrics(m),
		lockout.WithThreshold(cfg.LockoutThreshold),
	)
	if err != nil {
		log.Error("failed to build lockout tracker", "error", err)
		os.Exit(1)
	}

	responseCache := cache.New(cfg.CacheFreshness, m)

	var policyClient policy.Client
	if cfg.PolicyBaseURL != "" {
		policyClient = policy.NewHTTPClient(cfg.PolicyBaseURL, cfg.PolicyTimeout)
	} else {
		log.Warn("no policy service configured, serving empty policy sets")
		policyClient = &policy.StaticClient{}
	}

	details, err := detailsservice.New(sessions, employees, policyClient, responseCache, recorder,
		detailsservice.WithLogger(log),
		detailsservice.WithMetrics(m),
	)
	if err != nil {
		log.Error("failed to build details service", "error", err)
		os.Exit(1)
	}

	sweeper := janitor.New(log)
	sweeper.Register(janitor.Task{Name: "expire-sessions", Every: cfg.SessionSweepEvery, Run: sessions.ExpireIdle})
	sweeper.Register(janitor.Task{Name: "sweep-cache", Every: cfg.CacheSweepEvery, Run: func(ctx context.Context) error {
		responseCache.Sweep(ctx, cfg.CacheFreshness)
		return nil
	}})
	sweeper.Register(janitor.Task{Name: "enforce-lockouts", Every: cfg.LockoutSweepEvery, Run: tracker.Sweep})
	sweeper.Register(janitor.Task{Name: "flush-audit", Every: cfg.AuditFlushEvery, Run: recorder.Flush})
	sweeper.Register(janitor.Task{Name: "reset-access-counters", Every: cfg.CounterResetEvery, Run: details.ResetAccessCounters})

	router := httptransport.NewRouter(
		httptransport.NewSessionHandler(sessions, log),
		httptransport.NewEmployeeHandler(details, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting empgate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// Drain whatever audit events are still buffered.
		return recorder.Flush(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("empgate stopped")
}
