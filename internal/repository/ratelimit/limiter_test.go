package ratelimit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/imitune/internal/domain"
)

var testRules = map[domain.Endpoint]Rule{
	domain.EndpointSearch:   {Limit: 10, Window: time.Minute},
	domain.EndpointFeedback: {Limit: 10, Window: time.Hour},
}

// windowStart is aligned to both one-minute and one-hour windows.
var windowStart = time.UnixMilli(1_740_000_000_000 - 1_740_000_000_000%3_600_000)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestLimit_EleventhRequestDenied(t *testing.T) {
	ms := newMemStore()
	l := New(ms, "", testRules).WithClock(fixedClock(windowStart.Add(5 * time.Second)))
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		v, err := l.Limit(ctx, domain.EndpointSearch, "1.2.3.4")
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if !v.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if v.Remaining != 10-i {
			t.Errorf("request %d: expected remaining %d, got %d", i, 10-i, v.Remaining)
		}
	}

	v, err := l.Limit(ctx, domain.EndpointSearch, "1.2.3.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Allowed {
		t.Fatal("11th request should be denied")
	}
	if v.Remaining != 0 || v.Limit != 10 {
		t.Errorf("unexpected verdict %+v", v)
	}
	if want := windowStart.Add(time.Minute).UnixMilli(); v.ResetAtMs != want {
		t.Errorf("expected reset %d, got %d", want, v.ResetAtMs)
	}
}

func TestLimit_IdentifiersAndEndpointsIsolated(t *testing.T) {
	ms := newMemStore()
	l := New(ms, "", testRules).WithClock(fixedClock(windowStart))
	ctx := context.Background()

	for range 10 {
		if _, err := l.Limit(ctx, domain.EndpointSearch, "1.2.3.4"); err != nil {
			t.Fatal(err)
		}
	}

	if v, _ := l.Limit(ctx, domain.EndpointSearch, "5.6.7.8"); !v.Allowed {
		t.Error("other identifier should have its own budget")
	}
	if v, _ := l.Limit(ctx, domain.EndpointFeedback, "1.2.3.4"); !v.Allowed {
		t.Error("feedback should have its own budget")
	}
}

func TestLimit_PreviousWindowWeighted(t *testing.T) {
	ms := newMemStore()
	ctx := context.Background()

	l := New(ms, "", testRules).WithClock(fixedClock(windowStart.Add(30 * time.Second)))
	for range 10 {
		if _, err := l.Limit(ctx, domain.EndpointSearch, "ip"); err != nil {
			t.Fatal(err)
		}
	}

	// 15s into the next window: 10 * 0.75 = 7 carried over, plus this request.
	l.WithClock(fixedClock(windowStart.Add(75 * time.Second)))
	v, err := l.Limit(ctx, domain.EndpointSearch, "ip")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Allowed || v.Remaining != 2 {
		t.Errorf("expected allowed with 2 remaining, got %+v", v)
	}

	// Two windows later the old counter no longer contributes.
	l.WithClock(fixedClock(windowStart.Add(3 * time.Minute)))
	v, _ = l.Limit(ctx, domain.EndpointSearch, "ip")
	if v.Remaining != 9 {
		t.Errorf("expected fresh budget, got %+v", v)
	}
}

func TestLimit_KeyLayoutAndTTL(t *testing.T) {
	ms := newMemStore()
	l := New(ms, "test:rl", testRules).WithClock(fixedClock(windowStart))

	if _, err := l.Limit(context.Background(), domain.EndpointFeedback, "9.9.9.9"); err != nil {
		t.Fatal(err)
	}

	if len(ms.counters) != 1 {
		t.Fatalf("expected one counter, got %v", ms.counters)
	}
	for key, n := range ms.counters {
		if !strings.HasPrefix(key, "test:rl:feedback:9.9.9.9:") || n != 1 {
			t.Errorf("unexpected counter %s=%d", key, n)
		}
		if ms.ttls[key] != 2*time.Hour {
			t.Errorf("expected 2h TTL, got %v", ms.ttls[key])
		}
	}
}

func TestLimit_UnknownEndpoint(t *testing.T) {
	l := New(newMemStore(), "", map[domain.Endpoint]Rule{})
	if _, err := l.Limit(context.Background(), domain.EndpointSearch, "ip"); err == nil {
		t.Fatal("expected error for missing rule")
	}
}

func TestLimit_RejectsEndpointOutsideAPI(t *testing.T) {
	ms := newMemStore()
	rules := map[domain.Endpoint]Rule{"upload": {Limit: 10, Window: time.Minute}}
	l := New(ms, "", rules).WithClock(fixedClock(windowStart))

	_, err := l.Limit(context.Background(), "upload", "ip")
	if err == nil || !strings.Contains(err.Error(), "unknown endpoint") {
		t.Fatalf("expected unknown endpoint error, got %v", err)
	}
	if len(ms.counters) != 0 {
		t.Errorf("no counter should be written, got %v", ms.counters)
	}
}

func TestLimit_StoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	tests := []struct {
		name  string
		setup func(*memStore)
	}{
		{"incr", func(m *memStore) { m.incrErr = boom }},
		{"expire", func(m *memStore) { m.expireErr = boom }},
		{"get", func(m *memStore) { m.getErr = boom }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ms := newMemStore()
			tc.setup(ms)
			_, err := New(ms, "", testRules).Limit(context.Background(), domain.EndpointSearch, "ip")
			if !errors.Is(err, boom) {
				t.Fatalf("expected wrapped store error, got %v", err)
			}
			if !errors.Is(err, domain.ErrRateLimiterUnavailable) {
				t.Errorf("expected ErrRateLimiterUnavailable, got %v", err)
			}
		})
	}
}
