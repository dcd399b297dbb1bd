package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/imitune/internal/domain"
	domfeedback "github.com/kailas-cloud/imitune/internal/domain/feedback"
	domsearch "github.com/kailas-cloud/imitune/internal/domain/search"
	"github.com/kailas-cloud/imitune/internal/logger"
	"github.com/kailas-cloud/imitune/internal/usecase/admission"
	feedbackuc "github.com/kailas-cloud/imitune/internal/usecase/feedback"
	healthuc "github.com/kailas-cloud/imitune/internal/usecase/health"
	searchuc "github.com/kailas-cloud/imitune/internal/usecase/search"
)

// Client-facing messages.
const (
	msgInternal        = "An internal server error occurred. Please try again later."
	msgInvalidBody     = "Invalid JSON body"
	msgBodyTooLarge    = "Request body too large"
	msgFeedbackCreated = "Feedback submitted successfully"
)

// Default request body ceilings.
const (
	DefaultSearchBodyLimit   int64 = 1 << 20
	DefaultFeedbackBodyLimit int64 = 16 << 20
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Options configures the HTTP surface.
type Options struct {
	CORS              CORSConfig
	SearchBodyLimit   int64
	FeedbackBodyLimit int64
}

// Server exposes the search and feedback endpoints.
type Server struct {
	gate          *admission.Gate
	search        *searchuc.Service
	feedback      *feedbackuc.Service
	health        *healthuc.Service
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	gate *admission.Gate,
	search *searchuc.Service,
	feedback *feedbackuc.Service,
	health *healthuc.Service,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.SearchBodyLimit <= 0 {
		opts.SearchBodyLimit = DefaultSearchBodyLimit
	}
	if opts.FeedbackBodyLimit <= 0 {
		opts.FeedbackBodyLimit = DefaultFeedbackBodyLimit
	}
	// Below this a ceiling-sized recording is cut off by the reader
	// before ParseAudio can report its size.
	opts.FeedbackBodyLimit = max(opts.FeedbackBodyLimit, domfeedback.MinBodyBytes)
	s := &Server{
		gate:     gate,
		search:   search,
		feedback: feedback,
		health:   health,
		opts:     opts,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
	}
	return s
}

type searchResultItem struct {
	ID           string  `json:"id"`
	Score        float64 `json:"score"`
	FreesoundURL string  `json:"freesound_url"`
}

type searchResponse struct {
	Results []searchResultItem `json:"results"`
}

// Search handles POST /api/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, domain.EndpointSearch) {
		return
	}

	body, err := decodeBody(w, r, s.opts.SearchBodyLimit, bodyTooLarge)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	q, err := domsearch.ParseQuery(body["embedding"])
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	matches, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]searchResultItem, len(matches))
	for i, m := range matches {
		items[i] = searchResultItem{ID: m.ID, Score: m.Score, FreesoundURL: m.FreesoundURL}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: items})
}

type feedbackResponse struct {
	Message     string `json:"message"`
	AudioID     string `json:"audioId"`
	AudioURL    string `json:"audioUrl"`
	MetadataURL string `json:"metadataUrl"`
}

// Feedback handles POST /api/feedback.
func (s *Server) Feedback(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r, domain.EndpointFeedback) {
		return
	}

	body, err := decodeBody(w, r, s.opts.FeedbackBodyLimit, audioTooLarge)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	sub, err := domfeedback.ParseSubmission(body)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	res, err := s.feedback.Submit(r.Context(), &sub)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("Feedback stored",
		zap.String("audio_id", res.AudioID),
		zap.Bool("update", res.IsUpdate),
		zap.Int("ratings", len(sub.Ratings())),
	)
	writeJSON(w, http.StatusOK, feedbackResponse{
		Message:     msgFeedbackCreated,
		AudioID:     res.AudioID,
		AudioURL:    res.AudioURL,
		MetadataURL: res.MetadataURL,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeBody reads a single JSON object, keeping numbers as json.Number so
// the validators see the literal the client sent. An empty body decodes to an
// empty object; anything after the object is rejected. Bodies above limit are
// reported through tooLarge with the body size, as far as it is known.
func decodeBody(
	w http.ResponseWriter, r *http.Request, limit int64, tooLarge func(size int64) error,
) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.UseNumber()

	body := map[string]any{}
	err := dec.Decode(&body)
	switch {
	case err == nil:
		if _, err = dec.Token(); err == nil {
			return nil, domain.Invalid(msgInvalidBody)
		}
		if errors.Is(err, io.EOF) {
			return body, nil
		}
	case errors.Is(err, io.EOF):
		return body, nil
	}

	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return nil, fmt.Errorf("%w: %w", tooLarge(max(r.ContentLength, mbe.Limit+1)), err)
	}
	return nil, fmt.Errorf("%w: %w", domain.Invalid(msgInvalidBody), err)
}

func bodyTooLarge(int64) error { return domain.TooLarge(msgBodyTooLarge) }

// audioTooLarge attributes an oversized feedback body to its recording,
// which is the only field that can reach the ceiling.
func audioTooLarge(size int64) error {
	return domfeedback.AudioTooLarge(domfeedback.EstimateDecodedLen(size))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// validationHandler echoes validation messages with their status.
func validationHandler(w http.ResponseWriter, err error) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	status := http.StatusBadRequest
	if errors.Is(ve.Kind, domain.ErrPayloadTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	writeError(w, status, ve.Message)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Info("Request rejected", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, msgInternal)
}
