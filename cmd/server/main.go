package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	anchorhandler "veritas/internal/anchor/handler"
	"veritas/internal/anchor/ledger"
	anchormetrics "veritas/internal/anchor/metrics"
	anchorservice "veritas/internal/anchor/service"
	anchorstore "veritas/internal/anchor/store"
	"veritas/internal/anchor/workers"
	credentialhandler "veritas/internal/credential/handler"
	credentialservice "veritas/internal/credential/service"
	credstore "veritas/internal/credential/store"
	"veritas/internal/platform/config"
	"veritas/internal/platform/database"
	"veritas/internal/platform/health"
	"veritas/internal/platform/httpserver"
	kafkaproducer "veritas/internal/platform/kafka/producer"
	"veritas/internal/platform/logger"
	platformredis "veritas/internal/platform/redis"
	proofhandler "veritas/internal/proof/handler"
	proofmetrics "veritas/internal/proof/metrics"
	"veritas/internal/proof/replay"
	proofservice "veritas/internal/proof/service"
	proofverifier "veritas/internal/proof/verifier"
	statushandler "veritas/internal/status/handler"
	statusmetrics "veritas/internal/status/metrics"
	statusservice "veritas/internal/status/service"
	statusstore "veritas/internal/status/store"
	httptransport "veritas/internal/transport/http"
	"veritas/internal/verification/engine"
	verificationhandler "veritas/internal/verification/handler"
	"veritas/internal/verification/issuer"
	verificationmetrics "veritas/internal/verification/metrics"
	"veritas/internal/verification/policy"
	"veritas/internal/verification/resolver"
	"veritas/pkg/platform/audit"
	auditkafka "veritas/pkg/platform/audit/kafka"
	auditpublisher "veritas/pkg/platform/audit/publisher"
)

// anchorInterval is how often the background anchorer sweeps pending batches.
const anchorInterval = time.Minute

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing veritas",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	healthHandler := health.New(cfg.Environment)

	// Persistent stores fall back to in-memory when no database is configured,
	// which keeps local development dependency-free.
	var (
		credentials credstore.Store
		statuses    statusstore.Store
		anchors     anchorstore.Store
		deadLetters anchorstore.DeadLetterStore
	)
	if cfg.Database.URL != "" {
		pool, err := database.New(cfg.Database)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		healthHandler.RegisterCheck("database", pool.Health)
		credentials = credstore.NewPostgres(pool.DB())
		statuses = statusstore.NewPostgres(pool.DB())
		anchors = anchorstore.NewPostgres(pool.DB())
		deadLetters = anchorstore.NewPostgresDeadLetter(pool.DB())
	} else {
		log.Warn("no database configured, using in-memory stores")
		credentials = credstore.NewInMemoryStore()
		statuses = statusstore.NewInMemoryStore()
		anchors = anchorstore.NewInMemoryStore()
		deadLetters = anchorstore.NewInMemoryDeadLetter()
	}

	var guard replay.Guard
	if cfg.Redis.URL != "" {
		rds, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer rds.Close()
		healthHandler.RegisterCheck("redis", rds.Health)
		guard = replay.NewRedisGuard(rds)
	} else {
		log.Warn("no redis configured, using in-memory replay guard")
		memGuard := replay.NewInMemoryGuard()
		defer memGuard.Close()
		guard = memGuard
	}

	var sink audit.Sink
	if cfg.Kafka.Brokers != "" {
		producerCfg := kafkaproducer.DefaultConfig()
		producerCfg.Brokers = cfg.Kafka.Brokers
		producer, err := kafkaproducer.New(producerCfg, log)
		if err != nil {
			log.Error("kafka producer failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		healthHandler.RegisterCheck("kafka", producer.Health)
		sink = auditkafka.NewSink(producer, cfg.Kafka.AuditTopic)
	} else {
		log.Warn("no kafka brokers configured, audit events stay in-process")
		sink = audit.NewInMemorySink()
	}
	auditor := auditpublisher.New(sink, auditpublisher.WithLogger(log))
	defer auditor.Close()

	statusSvc := statusservice.NewService(statuses, cfg.StatusListCapacity,
		statusservice.WithLogger(log),
		statusservice.WithMetrics(statusmetrics.New()),
		statusservice.WithAuditor(auditor),
	)

	credentialSvc := credentialservice.NewService(credentials, statusSvc,
		credentialservice.WithLogger(log),
	)

	ledgerClient := ledger.NewRPCClient(cfg.Ledger)
	if cfg.Ledger.RPCURL != "" {
		healthHandler.RegisterCheck("ledger", ledgerClient.Health)
	}

	anchorSvc := anchorservice.NewService(
		anchors,
		deadLetters,
		ledgerClient,
		anchorservice.NewCredentialHasher(credentials),
		anchorservice.RetryPolicy{
			MaxAttempts:    cfg.Ledger.MaxAttempts,
			InitialBackoff: cfg.Ledger.InitialBackoff,
			MaxBackoff:     cfg.Ledger.MaxBackoff,
		},
		anchorservice.WithLogger(log),
		anchorservice.WithMetrics(anchormetrics.New()),
		anchorservice.WithAuditor(auditor),
	)

	signingKey := []byte(cfg.ProofSigningKey)
	sharedProofMetrics := proofmetrics.New()

	proofSvc := proofservice.NewService(credentials, signingKey,
		proofservice.WithLogger(log),
		proofservice.WithMetrics(sharedProofMetrics),
	)

	verifier := proofverifier.New(guard, cfg.ReplayTTL,
		proofverifier.WithLogger(log),
		proofverifier.WithMetrics(sharedProofMetrics),
		proofverifier.WithAuditor(auditor),
	)

	verificationEngine := engine.New(
		credentials,
		statusSvc,
		anchorSvc,
		issuer.New(cfg.Issuer, log),
		resolver.NewWebResolver(cfg.Issuer.RequestTimeout),
		policy.New(cfg.Risk),
		signingKey,
		engine.WithLogger(log),
		engine.WithMetrics(verificationmetrics.New()),
		engine.WithAuditor(auditor),
	)

	router := httptransport.NewRouter(httptransport.Handlers{
		Credential:   credentialhandler.New(credentialSvc, log),
		Proof:        proofhandler.New(proofSvc, verifier, log),
		Status:       statushandler.New(statusSvc, log),
		Anchor:       anchorhandler.New(anchorSvc, log),
		Verification: verificationhandler.New(verificationEngine, log),
		Health:       healthHandler,
	}, log)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	anchorer := workers.NewBatchAnchorer(anchorSvc, anchorInterval, log)
	go func() {
		if err := anchorer.Run(workerCtx); err != nil && err != context.Canceled {
			log.Error("batch anchorer stopped", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
