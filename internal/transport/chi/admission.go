package chi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kailas-cloud/imitune/internal/domain"
	"github.com/kailas-cloud/imitune/internal/domain/origin"
	"github.com/kailas-cloud/imitune/internal/usecase/admission"
)

// CORSConfig holds the headers emitted for allowed origins.
type CORSConfig struct {
	AllowedHeaders []string
	MaxAgeSec      int
}

const allowedMethods = "POST, OPTIONS"

type originErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type rateLimitErrorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

// admit runs the admission gate and writes the response for every outcome
// except Continue. It returns true when the handler should proceed.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, endpoint domain.Endpoint) bool {
	res := s.gate.Admit(r.Context(), admission.Request{
		Method:       r.Method,
		Origin:       r.Header.Get("Origin"),
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		RealIP:       r.Header.Get("X-Real-IP"),
		RemoteAddr:   r.RemoteAddr,
	}, endpoint, http.MethodPost)

	s.writeCORSHeaders(w, res.Origin)
	writeRateLimitHeaders(w, res.RateLimit)

	switch res.Outcome {
	case admission.Continue:
		return true
	case admission.Preflight:
		w.WriteHeader(http.StatusNoContent)
		return false
	}

	switch res.Status {
	case http.StatusForbidden:
		writeJSON(w, res.Status, originErrorResponse{
			Error:   res.Reason,
			Message: fmt.Sprintf("Requests from %s are not permitted. Please use the official website.", originLabel(r)),
		})
	case http.StatusTooManyRequests:
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter))
		writeJSON(w, res.Status, rateLimitErrorResponse{Error: res.Reason, RetryAfter: res.RetryAfter})
	case http.StatusMethodNotAllowed:
		w.Header().Set("Allow", allowedMethods)
		writeError(w, res.Status, res.Reason)
	default:
		writeError(w, res.Status, res.Reason)
	}
	return false
}

// writeCORSHeaders always varies on Origin; the allow headers are emitted
// only for an allowed origin, echoing it exactly.
func (s *Server) writeCORSHeaders(w http.ResponseWriter, d origin.Decision) {
	h := w.Header()
	h.Add("Vary", "Origin")
	if !d.Allowed {
		return
	}
	h.Set("Access-Control-Allow-Origin", d.Origin)
	h.Set("Access-Control-Allow-Methods", allowedMethods)
	h.Set("Access-Control-Allow-Headers", strings.Join(s.opts.CORS.AllowedHeaders, ", "))
	h.Set("Access-Control-Max-Age", strconv.Itoa(s.opts.CORS.MaxAgeSec))
}

// writeRateLimitHeaders is a no-op before the limiter stage. In degraded mode
// the open verdict is written as zeros.
func writeRateLimitHeaders(w http.ResponseWriter, v *domain.RateLimitVerdict) {
	if v == nil {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(v.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(v.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(v.ResetAtMs, 10))
}

func originLabel(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" {
		return o
	}
	return "unknown origins"
}
