package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/ec-storefront/internal/bootstrap"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/infrastructure/kinesis"
	"github.com/example/ec-storefront/internal/logging"
	"github.com/example/ec-storefront/internal/notification"
)

var (
	notifier *notification.Handler
	logger   *slog.Logger
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger = logging.New(cfg.LogLevel, cfg.LogFormat).With("service", "lambda-notifier")

	renderer, err := email.NewRenderer(cfg.StoreName, cfg.Currency)
	if err != nil {
		logger.Error("email renderer", "error", err)
		os.Exit(1)
	}
	stores, err := bootstrap.ReadOnly(context.Background(), cfg)
	if err != nil {
		logger.Error("open read store", "error", err)
		os.Exit(1)
	}

	sender := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	notifier = notification.NewHandler(sender, renderer, stores.Read, logger)
	logger.Info("initialized", "smtp_host", cfg.SMTPHost, "smtp_port", cfg.SMTPPort)
}

func handler(ctx context.Context, batch events.KinesisEvent) (events.KinesisEventResponse, error) {
	return kinesis.ProcessBatch(ctx, batch, notifier.HandleEvent, logger), nil
}

func main() {
	lambda.Start(handler)
}
