package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/pinledger/internal/infrastructure/metrics"
)

func TestRateLimiter_BlocksPerClient(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	rl := NewRateLimiter(1, 1).WithHitCounter(m.RateLimitHits)
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/1000000000/login", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("1.2.3.4:1000"); code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := send("1.2.3.4:2000"); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request from same host to be limited, got %d", code)
	}
	if code := send("5.6.7.8:1000"); code != http.StatusOK {
		t.Fatalf("expected other client to pass, got %d", code)
	}

	hits := testutil.ToFloat64(m.RateLimitHits.WithLabelValues("/api/v1/accounts/:id/login"))
	if hits != 1 {
		t.Fatalf("expected one rate limit hit, got %v", hits)
	}
}

func TestGetIP_IgnoresForwardingHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Real-IP", "10.0.0.2")
	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")

	if got := getIP(req); got != "10.0.0.1" {
		t.Fatalf("expected remote host, got %s", got)
	}
}

func TestRateLimiter_RotatingForwardedForDoesNotResetLimit(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	passed := 0
	for i := 1; i <= 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("1.1.1.%d", i))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code == http.StatusOK {
			passed++
		}
	}

	if passed != 1 {
		t.Fatalf("expected only the burst to pass, got %d", passed)
	}
	if rl.Size() != 1 {
		t.Fatalf("expected one tracked client, got %d", rl.Size())
	}
}

func TestRateLimiter_CleanupLimiters(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.getLimiter("old")
	now = now.Add(2 * time.Hour)
	rl.getLimiter("fresh")

	if removed := rl.CleanupLimiters(time.Hour); removed != 1 {
		t.Fatalf("expected one limiter removed, got %d", removed)
	}
	if rl.Size() != 1 {
		t.Fatalf("expected one limiter left, got %d", rl.Size())
	}
}
