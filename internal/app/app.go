// Package app assembles the imitune HTTP handler from configuration.
// It is the composition root shared by the server and Lambda entry points.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/imitune/internal/config"
	dbRedis "github.com/kailas-cloud/imitune/internal/db/redis"
	"github.com/kailas-cloud/imitune/internal/domain"
	"github.com/kailas-cloud/imitune/internal/domain/origin"
	"github.com/kailas-cloud/imitune/internal/metrics"
	"github.com/kailas-cloud/imitune/internal/repository/ratelimit"
	"github.com/kailas-cloud/imitune/internal/repository/sound"
	chiTransport "github.com/kailas-cloud/imitune/internal/transport/chi"
	"github.com/kailas-cloud/imitune/internal/transport/pinecone"
	s3Transport "github.com/kailas-cloud/imitune/internal/transport/s3"
	"github.com/kailas-cloud/imitune/internal/usecase/admission"
	feedbackuc "github.com/kailas-cloud/imitune/internal/usecase/feedback"
	healthuc "github.com/kailas-cloud/imitune/internal/usecase/health"
	searchuc "github.com/kailas-cloud/imitune/internal/usecase/search"
)

// Health check names.
const (
	CheckRateLimitStore = "ratelimit_store"
	CheckVectorIndex    = "vector_index"
)

// App is a fully wired handler plus the resources it owns.
type App struct {
	Handler http.Handler
	closers []func()
}

// Close releases collaborator connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// searchIndex is what the search service and the health check both need.
type searchIndex interface {
	searchuc.Index
	healthuc.Checker
}

// New wires every collaborator from cfg. A Redis store that is not ready in
// time is kept anyway: the limiter then fails open until it recovers.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{}

	policy, err := origin.NewPolicy(cfg.CORS.Origins, cfg.CORS.OriginPatterns)
	if err != nil {
		return nil, fmt.Errorf("origin policy: %w", err)
	}

	checks := map[string]healthuc.Checker{}

	var store *dbRedis.Store
	if len(cfg.Database.Addrs) > 0 {
		store, err = dbRedis.NewStore(redisConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		checks[CheckRateLimitStore] = store

		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			logger.Warn("Redis not ready, rate limiting will fail open", zap.Error(err))
		} else {
			logger.Info("Connected to redis", zap.Strings("addrs", cfg.Database.Addrs))
		}
	} else {
		logger.Warn("No redis addrs configured, rate limiting disabled")
	}

	// Pass a nil interface, not a typed nil pointer, when there is no store.
	var limiter admission.RateLimiter
	if store != nil {
		limiter = ratelimit.New(store, cfg.RateLimit.KeyPrefix, rules(cfg.RateLimit))
	}

	var index searchIndex
	switch cfg.Index.Driver {
	case config.IndexDriverRedis:
		if store == nil {
			a.Close()
			return nil, fmt.Errorf("index driver %q requires database addrs", cfg.Index.Driver)
		}
		index = sound.New(store, soundConfig(cfg))
	default:
		pc := pinecone.NewClient(pineconeConfig(cfg))
		if !pc.Configured() {
			logger.Warn("Pinecone credentials missing, search requests will fail")
		}
		index = pc
	}
	checks[CheckVectorIndex] = index

	blobCfg := s3Transport.Config{
		Bucket:          cfg.Blob.Bucket,
		Region:          cfg.Blob.Region,
		Endpoint:        cfg.Blob.Endpoint,
		AccessKeyID:     cfg.Blob.AccessKeyID,
		SecretAccessKey: cfg.Blob.SecretAccessKey,
		PublicBaseURL:   cfg.Blob.PublicBaseURL,
		KeyPrefix:       cfg.Blob.KeyPrefix,
		ACL:             cfg.Blob.ACL,
	}
	s3Client, err := s3Transport.NewClient(ctx, blobCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	metrics.RegisterAdmissionMetrics()

	gate := admission.New(policy, limiter, logger)
	server := chiTransport.NewServer(
		gate,
		searchuc.New(index),
		feedbackuc.New(s3Transport.NewUploader(s3Client, blobCfg)),
		healthuc.New(checks),
		chiTransport.Options{
			CORS: chiTransport.CORSConfig{
				AllowedHeaders: cfg.CORS.AllowedHeaders,
				MaxAgeSec:      cfg.CORS.MaxAgeSec,
			},
			SearchBodyLimit:   cfg.HTTP.SearchBodyLimit,
			FeedbackBodyLimit: cfg.HTTP.FeedbackBodyLimit,
		},
		logger,
	)
	a.Handler = chiTransport.NewRouter(server, logger)

	return a, nil
}

func rules(cfg config.RateLimitConfig) map[domain.Endpoint]ratelimit.Rule {
	return map[domain.Endpoint]ratelimit.Rule{
		domain.EndpointSearch: {
			Limit:  cfg.Search.Limit,
			Window: time.Duration(cfg.Search.WindowSec) * time.Second,
		},
		domain.EndpointFeedback: {
			Limit:  cfg.Feedback.Limit,
			Window: time.Duration(cfg.Feedback.WindowSec) * time.Second,
		},
	}
}

func redisConfig(cfg *config.Config) dbRedis.Config {
	return dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	}
}

func soundConfig(cfg *config.Config) sound.Config {
	return sound.Config{
		IndexName:   cfg.Index.Redis.IndexName,
		KeyPrefix:   cfg.Index.Redis.KeyPrefix,
		VectorField: cfg.Index.Redis.VectorField,
	}
}

func pineconeConfig(cfg *config.Config) *pinecone.Config {
	return &pinecone.Config{
		APIKey:  cfg.Index.Pinecone.APIKey,
		Host:    cfg.Index.Pinecone.Host,
		Timeout: time.Duration(cfg.Index.Pinecone.TimeoutSec) * time.Second,
	}
}
