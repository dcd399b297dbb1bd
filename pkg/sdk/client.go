package imitune

import (
	"context"
	"errors"
	"fmt"
	"time"

	dbRedis "github.com/kailas-cloud/imitune/internal/db/redis"
	domfeedback "github.com/kailas-cloud/imitune/internal/domain/feedback"
	domsearch "github.com/kailas-cloud/imitune/internal/domain/search"
	"github.com/kailas-cloud/imitune/internal/repository/sound"
	"github.com/kailas-cloud/imitune/internal/transport/pinecone"
	s3Transport "github.com/kailas-cloud/imitune/internal/transport/s3"
	feedbackuc "github.com/kailas-cloud/imitune/internal/usecase/feedback"
	healthuc "github.com/kailas-cloud/imitune/internal/usecase/health"
	searchuc "github.com/kailas-cloud/imitune/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultRedisIndex       = "imitune:sounds:idx"
	defaultRedisKeyPrefix   = "imitune:sound:"
	defaultRedisVectorField = "vector"
)

// ErrBlobStoreNotConfigured is returned by SubmitFeedback without WithS3 or WithBlobStore.
var ErrBlobStoreNotConfigured = errors.New("imitune: blob store not configured (use WithS3 or WithBlobStore)")

// Internal use case interfaces, substituted in tests.
type searchUseCase interface {
	Search(ctx context.Context, q domsearch.Query) ([]domsearch.Match, error)
}

type feedbackUseCase interface {
	Submit(ctx context.Context, sub *domfeedback.Submission) (feedbackuc.Result, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the imitune SDK entry point.
type Client struct {
	searchSvc   searchUseCase
	feedbackSvc feedbackUseCase
	healthSvc   healthUseCase
	closers     []func()
	obs         *observer
}

// New creates a Client. A vector index is required; the blob store is only
// needed for SubmitFeedback. The context bounds the Redis readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	c := &Client{obs: obs}

	index, err := c.buildIndex(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	checks := map[string]healthuc.Checker{}
	if hc, ok := index.(healthuc.Checker); ok {
		checks["vector_index"] = hc
	}
	c.searchSvc = searchuc.New(index)
	c.healthSvc = healthuc.New(checks)

	blobs, err := buildBlobs(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	if blobs != nil {
		c.feedbackSvc = feedbackuc.New(blobs)
	}

	return c, nil
}

func (c *Client) buildIndex(ctx context.Context, cfg *clientConfig) (searchuc.Index, error) {
	switch {
	case cfg.index != nil:
		return &indexAdapter{inner: cfg.index}, nil
	case len(cfg.redisAddrs) > 0:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.redisAddrs,
			Password: cfg.redisPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("imitune: create redis store: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			return nil, fmt.Errorf("imitune: redis not ready: %w", err)
		}
		name := cfg.redisIndex
		if name == "" {
			name = defaultRedisIndex
		}
		return sound.New(store, sound.Config{
			IndexName:   name,
			KeyPrefix:   defaultRedisKeyPrefix,
			VectorField: defaultRedisVectorField,
		}), nil
	case cfg.pineconeHost != "":
		return pinecone.NewClient(&pinecone.Config{
			APIKey: cfg.pineconeKey,
			Host:   cfg.pineconeHost,
		}), nil
	default:
		return nil, errors.New("imitune: vector index required (use WithPinecone, WithRedisIndex or WithIndex)")
	}
}

func buildBlobs(ctx context.Context, cfg *clientConfig) (feedbackuc.BlobStore, error) {
	switch {
	case cfg.blobs != nil:
		return cfg.blobs, nil
	case cfg.s3 != nil:
		s3Cfg := s3Transport.Config(*cfg.s3)
		if s3Cfg.Region == "" {
			s3Cfg.Region = "us-east-1"
		}
		api, err := s3Transport.NewClient(ctx, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("imitune: create s3 client: %w", err)
		}
		return s3Transport.NewUploader(api, s3Cfg), nil
	default:
		return nil, nil
	}
}

// Close releases all resources.
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Search returns the closest sounds to embedding, best first.
func (c *Client) Search(ctx context.Context, embedding []float64) (_ []Match, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	q, err := domsearch.NewQuery(embedding)
	if err != nil {
		return nil, err
	}

	found, err := c.searchSvc.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := make([]Match, len(found))
	for i, m := range found {
		out[i] = Match{ID: m.ID, Score: m.Score, FreesoundURL: m.FreesoundURL}
	}
	return out, nil
}

// SubmitFeedback validates and stores one feedback submission.
func (c *Client) SubmitFeedback(ctx context.Context, fb Feedback) (_ FeedbackResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("submit_feedback", start, err) }()

	if c.feedbackSvc == nil {
		return FeedbackResult{}, ErrBlobStoreNotConfigured
	}

	sub, err := domfeedback.ParseSubmission(fb.body())
	if err != nil {
		return FeedbackResult{}, err
	}

	res, err := c.feedbackSvc.Submit(ctx, &sub)
	if err != nil {
		return FeedbackResult{}, fmt.Errorf("submit feedback: %w", err)
	}
	return FeedbackResult{
		AudioID:     res.AudioID,
		AudioURL:    res.AudioURL,
		MetadataURL: res.MetadataURL,
		IsUpdate:    res.IsUpdate,
	}, nil
}

// Health checks the vector index.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// body renders the submission in its wire shape so both entry points share validation.
func (fb Feedback) body() map[string]any {
	body := map[string]any{}
	if fb.AudioDataURL != "" {
		body[domfeedback.FieldAudioQuery] = fb.AudioDataURL
	}
	if fb.AudioID != "" {
		body[domfeedback.FieldAudioID] = fb.AudioID
	}
	if fb.URLs != nil {
		urls := make([]any, len(fb.URLs))
		for i, u := range fb.URLs {
			urls[i] = u
		}
		body[domfeedback.FieldURLs] = urls
	}
	if fb.Ratings != nil {
		ratings := make([]any, len(fb.Ratings))
		for i, r := range fb.Ratings {
			if r != RatingNone {
				ratings[i] = string(r)
			}
		}
		body[domfeedback.FieldRatings] = ratings
	}
	return body
}

// indexAdapter wraps a public Index to satisfy the internal search contract.
type indexAdapter struct {
	inner Index
}

func (a *indexAdapter) Query(ctx context.Context, vector []float64, topK int) ([]domsearch.Match, error) {
	found, err := a.inner.Query(ctx, vector, topK)
	if err != nil {
		return nil, err
	}
	out := make([]domsearch.Match, len(found))
	for i, m := range found {
		out[i] = domsearch.Match{ID: m.ID, Score: m.Score, FreesoundURL: m.FreesoundURL}
	}
	return out, nil
}
