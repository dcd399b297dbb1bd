package chi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/imitune/internal/domain"
	"github.com/kailas-cloud/imitune/internal/domain/origin"
	domsearch "github.com/kailas-cloud/imitune/internal/domain/search"
	"github.com/kailas-cloud/imitune/internal/usecase/admission"
	feedbackuc "github.com/kailas-cloud/imitune/internal/usecase/feedback"
	healthuc "github.com/kailas-cloud/imitune/internal/usecase/health"
	searchuc "github.com/kailas-cloud/imitune/internal/usecase/search"
)

const allowedOrigin = "https://thatsoundslike.me"

var testNow = time.UnixMilli(1_740_000_000_000)

// --- Mocks ---

// countingLimiter allows limit requests per endpoint+identifier, then denies.
type countingLimiter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
	err    error
}

func newCountingLimiter(limit int) *countingLimiter {
	return &countingLimiter{limit: limit, counts: map[string]int{}}
}

func (l *countingLimiter) Limit(_ context.Context, endpoint domain.Endpoint, id string) (domain.RateLimitVerdict, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return domain.RateLimitVerdict{}, l.err
	}
	key := endpoint.String() + "|" + id
	l.counts[key]++
	n := l.counts[key]
	return domain.RateLimitVerdict{
		Allowed:   n <= l.limit,
		Limit:     l.limit,
		Remaining: max(0, l.limit-n),
		ResetAtMs: testNow.Add(42 * time.Second).UnixMilli(),
	}, nil
}

func (l *countingLimiter) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.counts {
		n += c
	}
	return n
}

type mockIndex struct {
	queryFn func(ctx context.Context, vector []float64, topK int) ([]domsearch.Match, error)
}

func (m *mockIndex) Query(ctx context.Context, vector []float64, topK int) ([]domsearch.Match, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, vector, topK)
	}
	return []domsearch.Match{
		{ID: "000000000001", Score: 0.93, FreesoundURL: "https://freesound.org/s/1/"},
		{ID: "000000000002", Score: 0.88, FreesoundURL: "https://freesound.org/s/2/"},
		{ID: "000000000003", Score: 0.80},
		{ID: "000000000004", Score: 0.75},
	}, nil
}

type mockBlobs struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (m *mockBlobs) Put(_ context.Context, name, _ string, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.names = append(m.names, name)
	return "https://blobs.test/" + name, nil
}

type mockChecker struct{ err error }

func (m *mockChecker) HealthCheck(context.Context) error { return m.err }

// --- Fixture ---

type fixture struct {
	handler http.Handler
	limiter *countingLimiter
	index   *mockIndex
	blobs   *mockBlobs
	checker *mockChecker
}

type fixtureOption func(*Options)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	policy, err := origin.NewPolicy(
		[]string{allowedOrigin, "http://localhost:5173"},
		[]string{`^https://.*\.vercel\.app$`},
	)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}

	f := &fixture{
		limiter: newCountingLimiter(10),
		index:   &mockIndex{},
		blobs:   &mockBlobs{},
		checker: &mockChecker{},
	}

	logger := zap.NewNop()
	gate := admission.New(policy, f.limiter, logger).WithClock(func() time.Time { return testNow })
	health := healthuc.New(map[string]healthuc.Checker{"vector_index": f.checker})

	o := Options{CORS: CORSConfig{
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With"},
		MaxAgeSec:      86400,
	}}
	for _, fn := range opts {
		fn(&o)
	}

	srv := NewServer(gate, searchuc.New(f.index), feedbackuc.New(f.blobs), health, o, logger)
	f.handler = NewRouter(srv, logger)
	return f
}

func (f *fixture) do(t *testing.T, method, path, origin string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func embedding(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 0.01
	}
	return v
}

func webmDataURL(n int) string {
	return "data:audio/webm;base64," + base64.StdEncoding.EncodeToString(make([]byte, n))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("response is not JSON (%d): %q", rec.Code, rec.Body.String())
	}
	return m
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, substr string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	msg, _ := decode(t, rec)["error"].(string)
	if !strings.Contains(msg, substr) {
		t.Errorf("expected error containing %q, got %q", substr, msg)
	}
}
