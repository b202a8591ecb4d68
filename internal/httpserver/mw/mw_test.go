package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrSnakeDoc/tenders/internal/logger"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestRateLimit(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := RateLimit(RateLimitConfig{
		Burst:             2,
		RefillPerIPPerMin: 60,
		Now:               func() time.Time { return now },
	})(ok)

	do := func(remote string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/api/tenders", nil)
		r.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	if rec := do("1.1.1.1:1000"); rec.Code != http.StatusNoContent || rec.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Fatalf("first request = %d remaining %q", rec.Code, rec.Header().Get("X-RateLimit-Remaining"))
	}
	if rec := do("1.1.1.1:1001"); rec.Code != http.StatusNoContent {
		t.Fatalf("second request = %d, want 204", rec.Code)
	}

	rec := do("1.1.1.1:1002")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}

	if rec := do("2.2.2.2:1000"); rec.Code != http.StatusNoContent {
		t.Errorf("other client = %d, want 204", rec.Code)
	}

	now = now.Add(time.Second)
	if rec := do("1.1.1.1:1003"); rec.Code != http.StatusNoContent {
		t.Errorf("after refill = %d, want 204", rec.Code)
	}
}

func TestRateLimitSweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{Burst: 1, IdleTTL: time.Minute, Now: func() time.Time { return now }})

	l.allow("1.1.1.1", now)
	l.allow("2.2.2.2", now.Add(2*time.Minute))

	if _, found := l.clients["1.1.1.1"]; found {
		t.Error("idle client was not swept")
	}
	if _, found := l.clients["2.2.2.2"]; !found {
		t.Error("active client was swept")
	}
}

func TestAllowOnlyCIDRS(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		remote  string
		want    int
	}{
		{"passthrough when empty", nil, "8.8.8.8:1", http.StatusNoContent},
		{"inside prefix", []string{"10.0.0.0/8"}, "10.2.3.4:1", http.StatusNoContent},
		{"outside prefix", []string{"10.0.0.0/8"}, "8.8.8.8:1", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AllowOnlyCIDRS(tt.allowed, false, logger.NewNop())(ok)
			r := httptest.NewRequest(http.MethodPost, "/api/search/run", nil)
			r.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestLogLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.FromZap(zap.New(core))

	cases := []struct {
		path   string
		status int
		level  zapcore.Level
	}{
		{"/api/tenders", http.StatusOK, zapcore.InfoLevel},
		{"/healthz", http.StatusOK, zapcore.DebugLevel},
		{"/api/tenders/x", http.StatusBadRequest, zapcore.WarnLevel},
		{"/api/tenders/export", http.StatusInternalServerError, zapcore.ErrorLevel},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			h := Log(log, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))

			entries := logs.TakeAll()
			if len(entries) != 1 {
				t.Fatalf("got %d log entries, want 1", len(entries))
			}
			if entries[0].Level != tc.level {
				t.Errorf("level = %v, want %v", entries[0].Level, tc.level)
			}
			if got := entries[0].ContextMap()["status"]; got != int64(tc.status) {
				t.Errorf("status field = %v, want %d", got, tc.status)
			}
		})
	}
}
