package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-billing/internal/config"
	pg "clinic-billing/internal/infra/db/postgres"
	"clinic-billing/internal/infra/logging"
	"clinic-billing/internal/infra/metrics"
	"clinic-billing/internal/infra/payment"
	red "clinic-billing/internal/infra/redis"
	"clinic-billing/internal/infra/sched"
	"clinic-billing/internal/infra/web"
	"clinic-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewTenantLocker(redisClient)

	// ---- Repositories ----
	subRepo := pg.NewSubscriptionRepo(pool)
	txRepo := pg.NewTransactionRepo(pool)

	// ---- Payment gateway ----
	gateway, err := payment.NewPagarmeGateway(cfg.Pagarme.APIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("pagarme gateway")
	}

	// ---- Use cases ----
	subUC := usecase.NewSubscriptionUseCase(subRepo, txRepo, locker, logger)
	billingUC := usecase.NewBillingUseCase(gateway, txRepo, subUC, logger)
	dispatcher := usecase.NewPaymentEventDispatcher(subUC, logger)

	// ---- HTTP server ----
	server := web.NewServer(cfg.Web, cfg.Pagarme.WebhookSecret, dispatcher, billingUC, subUC, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Expiry worker ----
	worker := sched.NewExpiryWorker(subUC, cfg.Scheduler.ExpiryInterval, logger)
	go worker.Run(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
