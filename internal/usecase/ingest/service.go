// Package ingest loads sound embeddings into the vector index and prunes them.
package ingest

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/imitune/internal/domain/catalog"
	"github.com/kailas-cloud/imitune/internal/metrics"
)

// Defaults for Options.
const (
	DefaultBatchSize       = 100
	DefaultDeleteBatchSize = 1000
	DefaultWorkers         = 4
)

// Options tunes a maintenance run.
type Options struct {
	BatchSize       int
	DeleteBatchSize int
	Workers         int
	// SettleDelay is waited before the closing count, since index stats
	// lag behind writes.
	SettleDelay time.Duration
}

// Result summarizes a run. Before and After are the index counts around it.
type Result struct {
	Processed int64
	Failed    int64
	Skipped   int64
	Batches   int64
	Before    int64
	After     int64
	Duration  time.Duration
}

// Service runs upload and prune jobs against a Sink.
type Service struct {
	sink   Sink
	opts   Options
	logger *zap.Logger
}

// New creates an ingest service.
func New(sink Sink, opts Options, logger *zap.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.DeleteBatchSize <= 0 {
		opts.DeleteBatchSize = DefaultDeleteBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Service{sink: sink, opts: opts, logger: logger}
}

// Upload streams a dataset export into the index in batches. A failed batch
// is logged and counted, and the run continues. Invalid sounds are skipped.
func (s *Service) Upload(ctx context.Context, r io.Reader) (Result, error) {
	start := time.Now()

	before, err := s.sink.Count(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count before upload: %w", err)
	}

	var (
		processed, failed, skipped, batches atomic.Int64
		dims                                int
		batch                               = make([]catalog.Sound, 0, s.opts.BatchSize)
	)

	// Batch failures are counted, never returned to the group, so one bad
	// batch does not cancel the rest. Go blocks once Workers are busy.
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		items := batch
		batch = make([]catalog.Sound, 0, s.opts.BatchSize)
		seq := batches.Add(1)
		g.Go(func() error {
			if s.write(ctx, "upsert", seq, len(items), func(ctx context.Context) error {
				return s.sink.Upsert(ctx, items)
			}) {
				processed.Add(int64(len(items)))
			} else {
				failed.Add(int64(len(items)))
			}
			return nil
		})
	}

	_, readErr := catalog.ReadDataset(r, func(snd catalog.Sound) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := snd.Validate(); err != nil || (dims != 0 && len(snd.Embedding) != dims) {
			s.logger.Warn("Skipping sound", zap.String("id", snd.ID), zap.Int("dims", len(snd.Embedding)), zap.Error(err))
			metrics.IngestItemsTotal.WithLabelValues("upsert", "skipped").Inc()
			skipped.Add(1)
			return nil
		}
		if dims == 0 {
			dims = len(snd.Embedding)
			if err := s.sink.Prepare(ctx, dims); err != nil {
				return fmt.Errorf("prepare index: %w", err)
			}
			s.logger.Info("Index ready", zap.Int("dims", dims))
		}
		batch = append(batch, snd)
		if len(batch) >= s.opts.BatchSize {
			flush()
		}
		return nil
	})
	if readErr == nil {
		flush()
	}
	_ = g.Wait()

	res := Result{
		Processed: processed.Load(),
		Failed:    failed.Load(),
		Skipped:   skipped.Load(),
		Batches:   batches.Load(),
		Before:    before,
	}
	if readErr != nil {
		res.Duration = time.Since(start)
		return res, readErr
	}

	res.After, err = s.countAfter(ctx)
	res.Duration = time.Since(start)
	return res, err
}

// Prune deletes sounds by ID in batches. Failed batches are logged and
// counted, and the run continues.
func (s *Service) Prune(ctx context.Context, ids []string) (Result, error) {
	start := time.Now()

	before, err := s.sink.Count(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count before prune: %w", err)
	}

	res := Result{Before: before}
	for chunk := range slices.Chunk(ids, s.opts.DeleteBatchSize) {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		res.Batches++
		ok := s.write(ctx, "delete", res.Batches, len(chunk), func(ctx context.Context) error {
			return s.sink.Delete(ctx, chunk)
		})
		if ok {
			res.Processed += int64(len(chunk))
		} else {
			res.Failed += int64(len(chunk))
		}
	}

	res.After, err = s.countAfter(ctx)
	res.Duration = time.Since(start)
	return res, err
}

// write runs one batch write and records its outcome.
func (s *Service) write(ctx context.Context, op string, seq int64, n int, fn func(context.Context) error) bool {
	start := time.Now()
	err := fn(ctx)
	metrics.IngestBatchDuration.WithLabelValues(op, metrics.StatusLabel(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("Batch failed",
			zap.String("op", op), zap.Int64("batch", seq), zap.Int("size", n), zap.Error(err))
		metrics.IngestItemsTotal.WithLabelValues(op, "failed").Add(float64(n))
		return false
	}
	metrics.IngestItemsTotal.WithLabelValues(op, "ok").Add(float64(n))
	s.logger.Debug("Batch written", zap.String("op", op), zap.Int64("batch", seq), zap.Int("size", n))
	return true
}

func (s *Service) countAfter(ctx context.Context) (int64, error) {
	if s.opts.SettleDelay > 0 {
		t := time.NewTimer(s.opts.SettleDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-t.C:
		}
	}
	n, err := s.sink.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count after run: %w", err)
	}
	return n, nil
}
