package imitune

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// S3Config describes the feedback bucket.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // LocalStack, MinIO
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	KeyPrefix       string
	ACL             string
}

type clientConfig struct {
	pineconeKey  string
	pineconeHost string

	redisAddrs    []string
	redisPassword string
	redisIndex    string

	s3 *S3Config

	index Index
	blobs BlobStore

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithPinecone queries a Pinecone index over its data-plane host.
func WithPinecone(apiKey, host string) Option {
	return optionFunc(func(c *clientConfig) {
		c.pineconeKey = apiKey
		c.pineconeHost = host
	})
}

// WithRedisIndex queries a Redis FT vector index instead of Pinecone.
// An empty indexName selects imitune:sounds:idx.
func WithRedisIndex(addr, password, indexName string) Option {
	return optionFunc(func(c *clientConfig) {
		c.redisAddrs = []string{addr}
		c.redisPassword = password
		c.redisIndex = indexName
	})
}

// WithS3 stores feedback in an S3-compatible bucket.
func WithS3(cfg S3Config) Option {
	return optionFunc(func(c *clientConfig) {
		c.s3 = &cfg
	})
}

// WithIndex supplies a custom vector index. Overrides WithPinecone and WithRedisIndex.
func WithIndex(idx Index) Option {
	return optionFunc(func(c *clientConfig) {
		c.index = idx
	})
}

// WithBlobStore supplies a custom blob store. Overrides WithS3.
func WithBlobStore(b BlobStore) Option {
	return optionFunc(func(c *clientConfig) {
		c.blobs = b
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
