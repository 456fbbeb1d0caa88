package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/ec-storefront/internal/bootstrap"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/infrastructure/kinesis"
	"github.com/example/ec-storefront/internal/logging"
	"github.com/example/ec-storefront/internal/projection"
)

var (
	projector *projection.Projector
	logger    *slog.Logger
)

// init runs once per cold start so the connection pool is reused across invocations.
func init() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger = logging.New(cfg.LogLevel, cfg.LogFormat).With("service", "lambda-projector")

	stores, err := bootstrap.ReadOnly(context.Background(), cfg)
	if err != nil {
		logger.Error("open read store", "error", err)
		os.Exit(1)
	}
	projector = projection.NewProjector(stores.Read, logger)
	logger.Info("initialized")
}

func handler(ctx context.Context, batch events.KinesisEvent) (events.KinesisEventResponse, error) {
	return kinesis.ProcessBatch(ctx, batch, projector.HandleEvent, logger), nil
}

func main() {
	lambda.Start(handler)
}
