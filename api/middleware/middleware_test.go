package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/use-agent/pagesift/config"
	"github.com/use-agent/pagesift/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r http.Handler, header, value string) int {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuth(t *testing.T) {
	r := okRouter(Auth([]string{"k1"}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "X-API-Key", "nope", http.StatusUnauthorized},
		{"x-api-key", "X-API-Key", "k1", http.StatusOK},
		{"bearer", "Authorization", "Bearer k1", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := get(r, tt.header, tt.value); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAuth_CountsByKeyIdentity(t *testing.T) {
	r := okRouter(Auth([]string{"k2"}))
	ok := metrics.AuthRequests.WithLabelValues(keyID("k2"), metrics.AuthOK)
	invalid := metrics.AuthRequests.WithLabelValues(unknownKey, metrics.AuthInvalid)
	missing := metrics.AuthRequests.WithLabelValues(unknownKey, metrics.AuthMissing)
	okBefore, invalidBefore, missingBefore := testutil.ToFloat64(ok), testutil.ToFloat64(invalid), testutil.ToFloat64(missing)

	get(r, "X-API-Key", "k2")
	get(r, "Authorization", "Bearer k2")
	get(r, "X-API-Key", "other")
	get(r, "", "")

	if d := testutil.ToFloat64(ok) - okBefore; d != 2 {
		t.Errorf("ok delta = %v, want 2", d)
	}
	if d := testutil.ToFloat64(invalid) - invalidBefore; d != 1 {
		t.Errorf("invalid delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(missing) - missingBefore; d != 1 {
		t.Errorf("missing delta = %v, want 1", d)
	}
}

func TestAuth_SetsKeyID(t *testing.T) {
	r := gin.New()
	r.Use(Auth([]string{"k3"}))
	var seen string
	r.GET("/x", func(c *gin.Context) { seen = KeyID(c) })

	get(r, "X-API-Key", "k3")
	if seen != keyID("k3") {
		t.Errorf("KeyID = %q, want %q", seen, keyID("k3"))
	}
	if len(seen) != 8 || strings.Contains(seen, "k3") {
		t.Errorf("KeyID %q should be an 8-char digest", seen)
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	if got := get(okRouter(Auth(nil)), "", ""); got != http.StatusOK {
		t.Errorf("status = %d", got)
	}
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := okRouter(RateLimit(ctx, config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))

	for i := 0; i < 2; i++ {
		if got := get(r, "", ""); got != http.StatusOK {
			t.Fatalf("request %d status = %d", i, got)
		}
	}
	if got := get(r, "", ""); got != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", got)
	}
}

func TestLimiterSet_Evict(t *testing.T) {
	s := newLimiterSet(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	now := time.Now()
	s.allow("old", now.Add(-2*time.Hour))
	s.allow("new", now)
	s.evict(now.Add(-time.Hour))

	if _, ok := s.entries["old"]; ok {
		t.Error("idle identity should be evicted")
	}
	if _, ok := s.entries["new"]; !ok {
		t.Error("recent identity should be kept")
	}
}

func TestMetrics_PassesThrough(t *testing.T) {
	if got := get(okRouter(Metrics()), "", ""); got != http.StatusOK {
		t.Errorf("status = %d", got)
	}
}
