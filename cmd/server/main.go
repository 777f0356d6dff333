package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"payguard/internal/audit"
	"payguard/internal/batch"
	batchstore "payguard/internal/batch/store"
	"payguard/internal/detector"
	"payguard/internal/detector/explain"
	detstore "payguard/internal/detector/store"
	"payguard/internal/identity/vault"
	"payguard/internal/ledger"
	"payguard/internal/platform/config"
	"payguard/internal/platform/httpserver"
	"payguard/internal/platform/logger"
	"payguard/internal/platform/metrics"
	"payguard/internal/platform/postgres"
	platformredis "payguard/internal/platform/redis"
	"payguard/internal/registry"
	"payguard/internal/registry/cache"
	regstore "payguard/internal/registry/store"
	httptransport "payguard/internal/transport/http"
)

// main wires dependencies and owns process lifecycle. Business logic lives in
// the internal service packages.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	log, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("payguard exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	v, err := vault.New(cfg.VaultKey)
	if err != nil {
		return err
	}
	grades, err := detector.ParseGradeTable(cfg.GradeRangesJSON)
	if err != nil {
		return err
	}

	// Stores fall back to memory variants when Postgres is not configured.
	var (
		staffStore registry.Store
		batchStore batch.Store
		flagStore  batch.FlagStore
		auditStore audit.Store
	)
	if db != nil {
		staffStore = regstore.NewPostgres(db)
		batchStore = batchstore.NewPostgres(db)
		flagStore = detstore.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
	} else {
		log.Warn("postgres not configured, using in-memory stores")
		staffStore = regstore.NewMemory()
		batchStore = batchstore.NewInMemoryStore()
		flagStore = detstore.NewMemory()
		auditStore = audit.NewMemoryStore()
	}

	auditSink, err := audit.NewKafkaSink(auditStore, cfg.KafkaBrokers, cfg.AuditTopic, log)
	if err != nil {
		return err
	}
	if closer, ok := auditSink.(interface{ Close() }); ok {
		defer closer.Close()
	}
	auditInbox := make(chan audit.Event, 256)
	auditor := audit.NewAsync(auditInbox, log)
	auditWorker := audit.NewWorker(auditSink, auditInbox)
	go func() {
		if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", zap.Error(err))
		}
	}()

	// The ledger client is optional: without a contract and signing seed the
	// service runs off-chain only and batches verify without anchoring.
	var (
		chain     *ledger.Client
		tracker   *ledger.Reconciler
		statusDst = &ledger.StatusRouter{}
	)
	if cfg.ContractID != "" && cfg.SigningSeed != "" {
		account, err := ledger.NewAccount(cfg.SigningSeed, cfg.AccountSequence)
		if err != nil {
			return err
		}
		rpc := ledger.NewJSONRPC(cfg.SorobanURL, cfg.RPCTimeout)
		chain, err = ledger.New(rpc, account, cfg.ContractID, log, m)
		if err != nil {
			return err
		}
		tracker = ledger.NewReconciler(rpc, statusDst, log, cfg.ReconcileAttempts, cfg.ReconcileDelay)
		go func() {
			if err := tracker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("reconciler stopped", zap.Error(err))
			}
		}()
	} else {
		log.Warn("ledger not configured, running off-chain only")
	}

	var (
		staffLedger  registry.Ledger
		batchLedger  batch.Ledger
		staffTracker registry.Tracker
		batchTracker batch.Tracker
	)
	if chain != nil {
		staffLedger = chain
		batchLedger = chain
		staffTracker = tracker
		batchTracker = tracker
	}

	staffSvc, err := registry.NewService(staffStore, cache.New(redisClient, config.RegistryCacheTTL),
		v, staffLedger, staffTracker, auditor, log, m)
	if err != nil {
		return err
	}

	var enricher explain.Enricher
	if e := explain.NewHTTPEnricher(cfg.EnrichURL, cfg.RPCTimeout); e != nil {
		enricher = e
	}
	engine, err := detector.NewEngine(staffSvc, staffSvc, grades, enricher, log, m)
	if err != nil {
		return err
	}

	batchSvc, err := batch.NewService(batchStore, engine, flagStore, batchLedger, batchTracker, auditor, log, m)
	if err != nil {
		return err
	}

	statusDst.Staff = staffSvc
	statusDst.Batch = batchSvc

	trail := audit.NewPublisher(auditSink)
	router := httptransport.NewRouter(staffSvc, batchSvc, trail, log)
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting payguard", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("payguard stopped")
	return nil
}
