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

	"certledger/internal/audit"
	"certledger/internal/platform/config"
	"certledger/internal/platform/httpserver"
	"certledger/internal/platform/logger"
	"certledger/internal/platform/metrics"
	platformredis "certledger/internal/platform/redis"
	"certledger/internal/registry/cache"
	"certledger/internal/registry/events"
	"certledger/internal/registry/handler"
	registrymetrics "certledger/internal/registry/metrics"
	"certledger/internal/registry/service"
	"certledger/internal/registry/store"
	httptransport "certledger/internal/transport/http"
	"certledger/internal/wallettoken"
)

// main wires dependencies and owns the process lifecycle. Business rules
// live in the registry service; nothing here makes a domain decision.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]httptransport.HealthChecker{}

	var st store.Store
	if cfg.PostgresURL != "" {
		pg, err := store.Open(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		checks["postgres"] = pg
		st = pg
		log.Info("registry store: postgres")
	} else {
		st = store.NewInMemoryStore()
		log.Warn("registry store: in-memory, state is not durable")
	}

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = rdb
		st = cache.New(st, rdb.Client, cfg.DocumentCacheTTL, log)
		log.Info("document cache enabled", "ttl", cfg.DocumentCacheTTL)
	}

	publisher := events.NewChanPublisher(cfg.EventBuffer, log)
	svc, err := service.New(cfg.Owner, st, publisher, registrymetrics.New())
	if err != nil {
		log.Error("failed to construct registry service", "error", err)
		os.Exit(1)
	}

	auditStore := audit.NewInMemoryStore()
	worker := audit.NewWorker(auditStore, publisher.Events(), log)

	tokens := wallettoken.NewService(cfg.JWTSigningKey, "certledger", "certledger")
	registryHandler := handler.New(svc, log, metrics.New(), tokens)
	router := httptransport.NewRouter(log, registryHandler, auditStore, checks).Build()

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting certledger", "addr", cfg.Addr, "owner", cfg.Owner.Hex())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
