package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"checkout-gateway/internal/checkout/application"
	checkouthttp "checkout-gateway/internal/checkout/infrastructure/http"
	checkoutkafka "checkout-gateway/internal/checkout/infrastructure/kafka"
	"checkout-gateway/internal/checkout/infrastructure/memory"
	checkoutpg "checkout-gateway/internal/checkout/infrastructure/postgres"
	"checkout-gateway/internal/checkout/infrastructure/razorpay"
	"checkout-gateway/internal/config"
	"checkout-gateway/pkg/idempotency"
	"checkout-gateway/pkg/logging"
	"checkout-gateway/pkg/outbox"
	"checkout-gateway/pkg/shutdown"
	"checkout-gateway/pkg/signature"
	"checkout-gateway/pkg/tracing"
)

func main() {
	log := logging.New(slog.LevelInfo)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg := config.Load()

	tp, err := tracing.Init(ctx, "checkout-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// Store: postgres when configured, in-memory otherwise (local runs).
	var store application.OrderStore
	var pool *pgxpool.Pool
	if cfg.PostgresURL != "" {
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("pg connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		pgStore := checkoutpg.NewStore(log, pool)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Error("pg migrate failed", "err", err)
			os.Exit(1)
		}
		store = pgStore
	} else {
		log.Warn("PG_URL not set, using in-memory order store")
		store = memory.NewStore()
	}

	var guard application.DuplicateGuard
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		guard = idempotency.NewGuard(rdb, 10*time.Minute)
	}

	processor, err := razorpay.NewClient(log, cfg.ProcessorBaseURL, cfg.ProcessorKeyID, cfg.ProcessorKeySecret)
	if err != nil {
		log.Error("processor client init failed", "err", err)
		os.Exit(1)
	}

	svc := application.NewService(log, application.Config{
		ProcessorKeyID:         cfg.ProcessorKeyID,
		ProcessorKeySecret:     cfg.ProcessorKeySecret,
		ProcessorWebhookSecret: signature.Key(cfg.ProcessorWebhookSecret),
		InternalWebhookSecret:  signature.Key(cfg.InternalWebhookSecret),
		DefaultCurrency:        cfg.DefaultCurrency,
		FrontendURL:            cfg.FrontendURL,
		AllowUnsignedManual:    cfg.TestEndpointsEnabled,
	}, store, processor, guard)

	// Outbox relay: only with a durable store and brokers configured. The
	// request path itself never depends on Kafka.
	if pool != nil && len(cfg.KafkaBrokers) > 0 {
		writer := checkoutkafka.NewWriter(cfg.KafkaBrokers)
		defer writer.Close()

		dispatch := outbox.NewDispatcher(log, writer, cfg.EventsTopic)
		relay := outbox.NewRelay(log, checkoutpg.NewOutboxStore(log, pool), dispatch, "checkout-service-relay")
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	}

	handler := checkouthttp.NewHandler(log, svc, cfg.TestEndpointsEnabled)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("checkout-service shutdown complete")
}
