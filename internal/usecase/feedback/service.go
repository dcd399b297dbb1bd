package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/imitune/internal/domain"
	domfeedback "github.com/kailas-cloud/imitune/internal/domain/feedback"
	"github.com/kailas-cloud/imitune/internal/logger"
	"github.com/kailas-cloud/imitune/internal/metrics"
)

const metadataContentType = "application/json"

// Result describes the objects written for one submission.
// AudioURL is empty for updates: the referenced audio is not looked up.
type Result struct {
	AudioID     string
	AudioURL    string
	MetadataURL string
	IsUpdate    bool
}

// Service persists feedback submissions as blob objects.
type Service struct {
	blobs BlobStore
	newID func() string
	now   func() time.Time
}

// New creates a feedback service.
func New(blobs BlobStore) *Service {
	return &Service{
		blobs: blobs,
		newID: func() string { return uuid.NewString() },
		now:   time.Now,
	}
}

// WithIDGenerator overrides audio ID generation.
func (s *Service) WithIDGenerator(fn func() string) *Service {
	s.newID = fn
	return s
}

// WithClock overrides the time source for createdAt and update object names.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit writes the audio (new submissions only) and then the metadata record.
// The two writes are not transactional: a metadata failure leaves the audio
// object in place and is reported as an error.
func (s *Service) Submit(ctx context.Context, sub *domfeedback.Submission) (Result, error) {
	now := s.now()
	res := Result{IsUpdate: sub.IsUpdate()}

	if sub.IsUpdate() {
		res.AudioID = sub.AudioID()
	} else {
		res.AudioID = s.newID()
		audio := sub.Audio()

		url, err := s.put(ctx, domfeedback.AudioObjectName(res.AudioID, audio.Extension), audio.ContentType, audio.Data)
		if err != nil {
			return Result{}, fmt.Errorf("upload audio %s: %w", res.AudioID, err)
		}
		res.AudioURL = url
		logger.FromContext(ctx).Info("Uploaded feedback audio",
			zap.String("audio_id", res.AudioID),
			zap.String("url", url),
			zap.Int("bytes", len(audio.Data)),
		)
	}

	record := domfeedback.NewRecord(sub, res.AudioID, res.AudioURL, now)
	data, err := record.Marshal()
	if err != nil {
		return Result{}, err
	}

	name := domfeedback.MetadataObjectName(res.AudioID, res.IsUpdate, now)
	url, err := s.put(ctx, name, metadataContentType, data)
	if err != nil {
		if !res.IsUpdate {
			metrics.FeedbackOrphanedAudioTotal.Inc()
			logger.FromContext(ctx).Warn("Audio stored without metadata",
				zap.String("audio_id", res.AudioID),
				zap.String("audio_url", res.AudioURL),
			)
		}
		return Result{}, fmt.Errorf("upload metadata %s: %w", res.AudioID, err)
	}
	res.MetadataURL = url

	return res, nil
}

func (s *Service) put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	start := time.Now()
	url, err := s.blobs.Put(ctx, name, contentType, data)
	metrics.CollaboratorDuration.WithLabelValues("blob_store", metrics.StatusLabel(err)).
		Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrBlobWrite, err)
	}
	return url, nil
}
