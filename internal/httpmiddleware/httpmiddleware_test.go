package httpmiddleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func init() { gin.SetMode(gin.TestMode) }

func TestTokenBucketRefills(t *testing.T) {
	l := NewTokenBucket(2, 60)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := l.allow("a"); !ok {
			t.Fatalf("request %d rejected", i)
		}
	}
	ok, wait := l.allow("a")
	if ok || wait <= 0 || wait > time.Second {
		t.Fatalf("third request ok=%v wait=%v", ok, wait)
	}
	if ok, _ := l.allow("b"); !ok {
		t.Fatal("keys must not share a bucket")
	}

	now = now.Add(time.Second)
	if ok, _ := l.allow("a"); !ok {
		t.Fatal("bucket did not refill")
	}
}

func TestTokenBucketEvictsIdleClients(t *testing.T) {
	l := NewTokenBucket(2, 60) // full again after 2s
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		l.allow(ip)
	}
	if len(l.state) != 3 {
		t.Fatalf("buckets = %d, want 3", len(l.state))
	}

	now = now.Add(time.Second)
	l.allow("10.0.0.1")
	if len(l.state) != 3 {
		t.Fatalf("buckets swept before refill window: %d", len(l.state))
	}

	now = now.Add(1500 * time.Millisecond)
	l.allow("10.0.0.4")
	if len(l.state) != 2 {
		t.Fatalf("buckets after idle window = %d, want 2", len(l.state))
	}
	if _, ok := l.state["10.0.0.2"]; ok {
		t.Fatal("idle bucket kept")
	}

	// an evicted client starts with a full bucket
	for i := 0; i < 2; i++ {
		if ok, _ := l.allow("10.0.0.2"); !ok {
			t.Fatalf("request %d after eviction rejected", i)
		}
	}
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	r := gin.New()
	r.Use(NewTokenBucket(1, 1).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = w.Code
		if w.Code == http.StatusTooManyRequests && w.Header().Get("Retry-After") == "" {
			t.Fatal("missing Retry-After")
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestRequestLoggerSkipsPaths(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(zerolog.New(&buf), "/healthz"))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/grafik", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, p := range []string{"/healthz", "/api/grafik"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
		if w.Header().Get(requestIDHeader) == "" {
			t.Fatalf("%s: no request id header", p)
		}
	}

	out := buf.String()
	if strings.Contains(out, "/healthz") {
		t.Fatalf("skipped path logged: %s", out)
	}
	if !strings.Contains(out, `"path":"/api/grafik"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("unexpected log: %s", out)
	}
}

func TestRecoveryReturns500(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()), SecurityHeaders())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
}
