package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/gatehouse/internal/metrics"
	"github.com/hitoshi/gatehouse/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionValidator  middleware.SessionValidator
	UserResolver      middleware.UserResolver
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	Sessions    SessionWriter
	AuthConfig  AuthHandlerConfig

	// 観測
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	// ヘルスチェック
	HealthPinger HealthPinger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → CORS → SecurityHeaders → CSRF → Session → RateLimit(General)
//
// /health と /metrics はレート制限とセッション解決の対象外。
// /auth/{provider} には総当たり対策の専用レート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions, deps.Metrics, deps.AuthConfig)
	indexHandler := NewIndexHandler(deps.HealthPinger)

	// --- セッション解決の対象外のルート ---

	r.Get("/health", indexHandler.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- セッション解決を通すルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionValidator, deps.UserResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", indexHandler.Greeting)
		r.Get("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)

		// 認証フロー（総当たり対策の専用レート制限を追加）
		r.With(deps.RateLimiter.AuthMiddleware()).Get("/auth/{provider}", authHandler.HandleAuth)
	})

	return r
}
