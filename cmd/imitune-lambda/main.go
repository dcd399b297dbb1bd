// Package main serves the imitune API from AWS Lambda behind an API Gateway HTTP API.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/kailas-cloud/imitune/internal/app"
	"github.com/kailas-cloud/imitune/internal/config"
	logpkg "github.com/kailas-cloud/imitune/internal/logger"
	"github.com/kailas-cloud/imitune/internal/transport/apigw"
	"github.com/kailas-cloud/imitune/internal/version"
)

func main() {
	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting imitune lambda",
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.String("index_driver", cfg.Index.Driver),
	)

	// Built once per cold start and reused across invocations.
	a, err := app.New(context.Background(), &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	defer a.Close()

	lambda.Start(apigw.New(a.Handler).Handle)
}
