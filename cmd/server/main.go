package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	accountstore "foodlink/internal/account/store"
	attendancehandler "foodlink/internal/attendance/handler"
	attendanceservice "foodlink/internal/attendance/service"
	attendancestore "foodlink/internal/attendance/store"
	"foodlink/internal/audit"
	ledgerhandler "foodlink/internal/ledger/handler"
	ledgerservice "foodlink/internal/ledger/service"
	ledgerstore "foodlink/internal/ledger/store"
	notificationhandler "foodlink/internal/notification/handler"
	notificationservice "foodlink/internal/notification/service"
	notificationstore "foodlink/internal/notification/store"
	"foodlink/internal/platform/auth"
	"foodlink/internal/platform/config"
	"foodlink/internal/platform/httpserver"
	"foodlink/internal/platform/logger"
	"foodlink/internal/platform/metrics"
	"foodlink/internal/platform/middleware"
	"foodlink/internal/platform/postgres"
	"foodlink/internal/platform/redis"
	proxyhandler "foodlink/internal/proxy/handler"
	proxyservice "foodlink/internal/proxy/service"
	proxystore "foodlink/internal/proxy/store"
	registryhandler "foodlink/internal/registry/handler"
	registryservice "foodlink/internal/registry/service"
	registrystore "foodlink/internal/registry/store"
	"foodlink/internal/token"
	tokenhandler "foodlink/internal/token/handler"
	tokenservice "foodlink/internal/token/service"
	tokenstore "foodlink/internal/token/store"
)

// participantStore is the union of what the registry and attendance services
// need from the participant store.
type participantStore interface {
	registryservice.Store
	attendanceservice.Participants
}

func main() {
	log := logger.New()
	if err := run(log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	m := metrics.New()

	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Stores.
	var (
		participants  participantStore
		delegates     proxyservice.Store
		tokens        tokenservice.Store
		noShows       attendanceservice.EventStore
		distributions ledgerservice.Store
		inbox         notificationservice.Store
		directory     accountstore.Directory
		auditSinks    []audit.Sink
	)
	if db != nil {
		participants = registrystore.NewPostgres(db)
		delegates = proxystore.NewPostgres(db)
		tokens = tokenstore.NewPostgres(db)
		noShows = attendancestore.NewPostgres(db)
		distributions = ledgerstore.NewPostgres(db)
		inbox = notificationstore.NewPostgres(db)
		directory = accountstore.NewPostgres(db)
		auditSinks = append(auditSinks, audit.NewPostgresStore(db))
	} else {
		participants = registrystore.NewMemory()
		delegates = proxystore.NewMemory()
		tokens = tokenstore.NewMemory()
		noShows = attendancestore.NewMemory()
		distributions = ledgerstore.NewMemory()
		inbox = notificationstore.NewMemory()
		directory = accountstore.NewMemory()
		auditSinks = append(auditSinks, audit.NewMemoryStore())
	}
	if redisClient != nil {
		// Redis, when configured, holds the short-lived tokens instead of
		// the primary database.
		tokens = tokenstore.NewRedis(redisClient)
	}

	if sink, err := audit.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
		return err
	} else if sink != nil {
		defer sink.Close()
		auditSinks = append(auditSinks, sink)
	}

	publisher := audit.NewPublisher(256, m)
	worker := audit.NewWorker(publisher.Inbox(), log, auditSinks...)

	// Services.
	dispatcher := notificationservice.New(inbox, directory,
		notificationservice.WithLogger(log),
		notificationservice.WithMetrics(m),
	)
	registrySvc := registryservice.New(participants, dispatcher,
		registryservice.WithLogger(log),
		registryservice.WithMetrics(m),
		registryservice.WithAuditPublisher(publisher),
		registryservice.WithMaxAllocationAttempts(cfg.AllocationMaxAttempts),
	)
	signer := token.NewSigner([]byte(cfg.JWTSigningKey))
	tokenSvc := tokenservice.New(tokens, participants, delegates, signer,
		tokenservice.WithLogger(log),
		tokenservice.WithMetrics(m),
		tokenservice.WithAuditPublisher(publisher),
		tokenservice.WithTTL(cfg.TokenTTL),
	)
	proxySvc := proxyservice.New(delegates, participants, dispatcher,
		proxyservice.WithLogger(log),
		proxyservice.WithAuditPublisher(publisher),
	)
	attendanceSvc := attendanceservice.New(noShows, participants, dispatcher,
		attendanceservice.WithLogger(log),
		attendanceservice.WithMetrics(m),
		attendanceservice.WithAuditPublisher(publisher),
		attendanceservice.WithThreshold(cfg.NoShowThreshold),
	)
	ledgerSvc := ledgerservice.New(distributions, participants, dispatcher,
		ledgerservice.WithLogger(log),
		ledgerservice.WithMetrics(m),
		ledgerservice.WithAuditPublisher(publisher),
	)

	validator := auth.NewJWTValidator([]byte(cfg.JWTSigningKey))

	r := chi.NewRouter()
	r.Use(middleware.Tracing)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	registryhandler.New(registrySvc, log, m, validator, cfg.DefaultLocationPrefix).Register(r)
	tokenhandler.New(tokenSvc, log, m, validator).Register(r)
	proxyhandler.New(proxySvc, log, m, validator).Register(r)
	attendancehandler.New(attendanceSvc, log, m, validator).Register(r)
	ledgerhandler.New(ledgerSvc, log, m, validator).Register(r)
	notificationhandler.New(dispatcher, log, m, validator).Register(r)

	server := httpserver.New(cfg.Addr, r)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := worker.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
