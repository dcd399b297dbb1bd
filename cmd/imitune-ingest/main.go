// Command imitune-ingest maintains the sound vector index.
//
// Usage:
//
//	imitune-ingest -mode upload -file embeddings.json -workers 4
//	imitune-ingest -mode prune -csv sounds.csv
//
// upload streams a JSON array of {embedding, freesound_url} objects into the
// configured index (index.driver) in batches. prune deletes the vectors whose
// row in the CSV export has an empty freesound_url. The index backend and its
// credentials come from the same config/<ENV>.yaml as the API server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/imitune/internal/app"
	"github.com/kailas-cloud/imitune/internal/config"
	"github.com/kailas-cloud/imitune/internal/domain/catalog"
	logpkg "github.com/kailas-cloud/imitune/internal/logger"
	"github.com/kailas-cloud/imitune/internal/metrics"
	"github.com/kailas-cloud/imitune/internal/usecase/ingest"
)

const sampleIDs = 5

type flags struct {
	mode        string
	file        string
	csv         string
	batchSize   int
	workers     int
	settle      time.Duration
	yes         bool
	metricsPort string
}

func parseFlags() flags {
	f := flags{}
	flag.StringVar(&f.mode, "mode", "upload", "upload or prune")
	flag.StringVar(&f.file, "file", "embeddings.json", "dataset JSON for upload")
	flag.StringVar(&f.csv, "csv", "", "CSV export for prune; rows without freesound_url are deleted")
	flag.IntVar(&f.batchSize, "batch-size", ingest.DefaultBatchSize, "vectors per upsert batch")
	flag.IntVar(&f.workers, "workers", ingest.DefaultWorkers, "parallel upsert workers")
	flag.DurationVar(&f.settle, "settle", 10*time.Second, "wait before the closing index count")
	flag.BoolVar(&f.yes, "yes", false, "skip the prune confirmation prompt")
	flag.StringVar(&f.metricsPort, "metrics-port", "", "serve Prometheus metrics on this port while running")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, f, &cfg, logger); err != nil {
		cancel()
		logger.Fatal("Ingest failed", zap.String("mode", f.mode), zap.Error(err))
	}
}

func run(ctx context.Context, f flags, cfg *config.Config, logger *zap.Logger) error {
	metrics.RegisterIngestMetrics()
	if f.metricsPort != "" {
		srv := serveMetrics(f.metricsPort, logger)
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	sink, release, err := app.NewSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	svc := ingest.New(sink, ingest.Options{
		BatchSize:   f.batchSize,
		Workers:     f.workers,
		SettleDelay: f.settle,
	}, logger)

	var res ingest.Result
	switch f.mode {
	case "upload":
		res, err = upload(ctx, svc, f.file, logger)
	case "prune":
		res, err = prune(ctx, svc, f, logger)
	default:
		return fmt.Errorf("unknown mode %q (want upload or prune)", f.mode)
	}
	if err != nil {
		return err
	}

	logger.Info("Ingest finished",
		zap.String("mode", f.mode),
		zap.String("index_driver", cfg.Index.Driver),
		zap.Int64("processed", res.Processed),
		zap.Int64("failed", res.Failed),
		zap.Int64("skipped", res.Skipped),
		zap.Int64("batches", res.Batches),
		zap.Int64("count_before", res.Before),
		zap.Int64("count_after", res.After),
		zap.Duration("duration", res.Duration),
	)
	return nil
}

func upload(ctx context.Context, svc *ingest.Service, path string, logger *zap.Logger) (ingest.Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = file.Close() }()

	logger.Info("Uploading dataset", zap.String("file", path))
	return svc.Upload(ctx, bufio.NewReaderSize(file, 1<<20))
}

func prune(ctx context.Context, svc *ingest.Service, f flags, logger *zap.Logger) (ingest.Result, error) {
	if f.csv == "" {
		return ingest.Result{}, errors.New("-csv is required for prune")
	}
	file, err := os.Open(f.csv)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("open csv: %w", err)
	}
	ids, err := catalog.MissingURLIDs(file)
	_ = file.Close()
	if err != nil {
		return ingest.Result{}, err
	}
	if len(ids) == 0 {
		logger.Info("No sounds without freesound_url, nothing to delete")
		return ingest.Result{}, nil
	}

	logger.Info("Sounds selected for deletion",
		zap.Int("count", len(ids)),
		zap.Strings("sample", ids[:min(sampleIDs, len(ids))]),
	)
	if !f.yes && !confirm(os.Stdin, os.Stdout, len(ids)) {
		logger.Info("Deletion cancelled")
		return ingest.Result{}, nil
	}
	return svc.Prune(ctx, ids)
}

// confirm asks for an explicit y/yes; anything else declines.
func confirm(in io.Reader, out io.Writer, n int) bool {
	_, _ = fmt.Fprintf(out, "Delete %d vectors from the index? [y/N]: ", n)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func serveMetrics(port string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()
	return srv
}
