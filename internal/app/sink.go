package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/imitune/internal/config"
	dbRedis "github.com/kailas-cloud/imitune/internal/db/redis"
	"github.com/kailas-cloud/imitune/internal/repository/sound"
	"github.com/kailas-cloud/imitune/internal/transport/pinecone"
	"github.com/kailas-cloud/imitune/internal/usecase/ingest"
)

// NewSink opens the configured vector index for maintenance. Unlike New it
// requires a reachable backend. The returned func releases it.
func NewSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ingest.Sink, func(), error) {
	switch cfg.Index.Driver {
	case config.IndexDriverRedis:
		if len(cfg.Database.Addrs) == 0 {
			return nil, nil, fmt.Errorf("index driver %q requires database addrs", cfg.Index.Driver)
		}
		store, err := dbRedis.NewStore(redisConfig(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("create redis store: %w", err)
		}
		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Database.Addrs),
			zap.String("index", cfg.Index.Redis.IndexName))
		return sound.NewWriter(store, soundConfig(cfg)), store.Close, nil
	default:
		pc := pinecone.NewClient(pineconeConfig(cfg))
		if !pc.Configured() {
			return nil, nil, fmt.Errorf("pinecone api key and host are required")
		}
		return pc, func() {}, nil
	}
}
