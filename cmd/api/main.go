package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/ec-storefront/internal/api"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/bootstrap"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("service", "api")
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	services := bootstrap.NewServices(stores, cfg, logger)

	var wg sync.WaitGroup
	if stores.Producer != nil && cfg.EmbeddedProjector {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "api-projector", logger)
		defer consumer.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Consume(ctx, stores.Projector.HandleEvent); err != nil && ctx.Err() == nil {
				logger.Error("embedded projector stopped", "error", err)
			}
		}()
		logger.Info("embedded projector consuming", "topic", cfg.KafkaTopic)
	}

	scheduler, err := services.Scheduler(cfg, logger)
	if err != nil {
		return err
	}
	scheduler.Start()

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, 30*time.Second)
	handlers := api.NewHandlers(services.Commands, services.Queries, services.Resolver, cfg.WebhookSecret, logger)
	if cfg.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET is empty; payment webhooks will be rejected")
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handlers, jwtService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", cfg.HTTPAddr, "event_store", cfg.EventStore)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	<-scheduler.Stop().Done()
	stop()
	wg.Wait()
	return nil
}
