package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/gatehouse/internal/metrics"
	"github.com/hitoshi/gatehouse/internal/middleware"
	"github.com/hitoshi/gatehouse/internal/model"
	"github.com/hitoshi/gatehouse/internal/session"
)

// mockPinger はHealthPingerのモック実装。
type mockPinger struct {
	PingFn func(ctx context.Context) error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	if m.PingFn == nil {
		return nil
	}
	return m.PingFn(ctx)
}

// mockUserResolver はmiddleware.UserResolverのモック実装。
type mockUserResolver struct {
	FindByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserResolver) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.FindByIDFn == nil {
		return nil, nil
	}
	return m.FindByIDFn(ctx, id)
}

var (
	_ HealthPinger            = (*mockPinger)(nil)
	_ middleware.UserResolver = (*mockUserResolver)(nil)
)

// newTestRouter はテスト用の依存をすべて配線したルーターを返す。
func newTestRouter(t *testing.T, mutate func(deps *RouterDeps)) http.Handler {
	t.Helper()

	registry := prometheus.NewRegistry()
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(1000),
		GeneralBurst:    1000,
		AuthRate:        rate.Limit(1000),
		AuthBurst:       1000,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		Logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		SessionValidator: session.NewManager(session.Config{
			Secret: []byte("router-test-secret"),
			MaxAge: 3600,
		}),
		UserResolver:      &mockUserResolver{},
		RateLimiter:       rl,
		CORSAllowedOrigin: "http://localhost:3000",
		AuthService:       &mockAuthService{},
		Sessions:          &mockSessionWriter{},
		Metrics:           metrics.NewCollector(registry),
		Gatherer:          registry,
		HealthPinger:      &mockPinger{},
	}
	if mutate != nil {
		mutate(deps)
	}
	return NewRouter(deps)
}

func TestRouter_GreetingAnonymous(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "hello!") {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestRouter_HealthOK(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestRouter_HealthDegraded(t *testing.T) {
	router := newTestRouter(t, func(deps *RouterDeps) {
		deps.HealthPinger = &mockPinger{
			PingFn: func(ctx context.Context) error {
				return fmt.Errorf("server selection timeout")
			},
		}
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_UnknownRouteReturns404(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/no/such/route", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRouter_SecurityHeadersApplied(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRouter_AuthRateLimitApplied(t *testing.T) {
	router := newTestRouter(t, func(deps *RouterDeps) {
		rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			GeneralRate:     rate.Limit(1000),
			GeneralBurst:    1000,
			AuthRate:        rate.Limit(0.001),
			AuthBurst:       1,
			CleanupInterval: time.Minute,
		})
		t.Cleanup(rl.Stop)
		deps.RateLimiter = rl
		deps.AuthService = &mockAuthService{
			AuthorizeURLFn: func(provider, state string) (string, error) {
				return "https://idp.example.com/authorize", nil
			},
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	req.RemoteAddr = "192.0.2.1:1"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("first auth request: expected 307, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	req.RemoteAddr = "192.0.2.1:2"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second auth request: expected 429, got %d", rec.Code)
	}
}

// 認証済みリクエストのアクセスログにuser_idが含まれることを検証する。
// セッション解決はロギングより後段のため、配線を通した検証が必要になる。
func TestRouter_AccessLogContainsUserID(t *testing.T) {
	var logBuf bytes.Buffer

	sessions := session.NewManager(session.Config{
		Secret: []byte("router-test-secret"),
		MaxAge: 3600,
	})

	router := newTestRouter(t, func(deps *RouterDeps) {
		deps.Logger = slog.New(slog.NewJSONHandler(&logBuf, nil))
		deps.SessionValidator = sessions
		deps.UserResolver = &mockUserResolver{
			FindByIDFn: func(ctx context.Context, id string) (*model.User, error) {
				return &model.User{ID: id, Email: "taro@example.com", Name: "Taro"}, nil
			},
		}
	})

	issueRec := httptest.NewRecorder()
	sessions.Issue(issueRec, "user-9")
	cookie := issueRec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(logBuf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, logBuf.String())
	}
	if entry["user_id"] != "user-9" {
		t.Errorf("user_id = %v, want user-9", entry["user_id"])
	}
}
