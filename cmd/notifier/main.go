package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ec-storefront/internal/bootstrap"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/logging"
	"github.com/example/ec-storefront/internal/notification"
)

const consumerGroup = "email-notifier"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("service", "notifier")

	renderer, err := email.NewRenderer(cfg.StoreName, cfg.Currency)
	if err != nil {
		logger.Error("email renderer", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.ReadOnly(ctx, cfg)
	if err != nil {
		logger.Error("open read store", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	sender := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	handler := notification.NewHandler(sender, renderer, stores.Read, logger)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup, logger)
	defer consumer.Close()

	logger.Info("consuming", "topic", cfg.KafkaTopic, "group", consumerGroup, "smtp_host", cfg.SMTPHost)
	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
		logger.Error("consumer stopped", "error", err)
	}
	logger.Info("shutting down")
}
