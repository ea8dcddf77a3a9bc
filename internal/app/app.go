// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/time/rate"

	"github.com/hitoshi/gatehouse/internal/auth"
	"github.com/hitoshi/gatehouse/internal/config"
	"github.com/hitoshi/gatehouse/internal/database"
	"github.com/hitoshi/gatehouse/internal/handler"
	"github.com/hitoshi/gatehouse/internal/logger"
	"github.com/hitoshi/gatehouse/internal/metrics"
	"github.com/hitoshi/gatehouse/internal/middleware"
	"github.com/hitoshi/gatehouse/internal/repository"
	"github.com/hitoshi/gatehouse/internal/security"
	"github.com/hitoshi/gatehouse/internal/session"
	"github.com/hitoshi/gatehouse/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 設定読み込み前のログ出力用に一旦デフォルト設定でセットアップする
	logger.SetupDefault(w, false)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. デバッグ設定を反映して再セットアップ
	logger.SetupDefault(w, cfg.Debug)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8888"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandIndexes:
		return runIndexes(cfg)
	default:
		return runServe(cfg)
	}
}

// mongoPinger はhandler.HealthPingerをmongoクライアントで実装する。
type mongoPinger struct {
	client *mongo.Client
}

func (p *mongoPinger) Ping(ctx context.Context) error {
	return database.Ping(ctx, p.client)
}

// runServe はAPIサーバーモードで起動する。
// データストア接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. データストア接続
	ctx := context.Background()
	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return fmt.Errorf("failed to connect to datastore: %w", err)
	}
	defer func() {
		if err := database.Disconnect(ctx, client); err != nil {
			slog.Error("failed to disconnect from datastore", slog.String("error", err.Error()))
		}
	}()

	if err := database.Ping(ctx, client); err != nil {
		return fmt.Errorf("failed to reach datastore: %w", err)
	}

	slog.Info("datastore connection established")

	db := client.Database(cfg.DatabaseName)

	// 2. メトリクスの初期化
	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	// 3. リポジトリとディレクトリの初期化
	userRepo := repository.NewMongoUserRepo(db)
	directory := user.NewDirectory(userRepo, security.NewNameSanitizer(), collector)

	// 4. 認証プロバイダーの登録と認証サービス
	registry := auth.NewRegistry()
	registry.Register("google", auth.NewGoogle(auth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.RedirectURL("google"),
	}))

	authService := auth.NewService(registry, directory, collector)

	// 5. セッションマネージャ
	sessions := session.NewManager(session.Config{
		Secret: []byte(cfg.CookieSecret),
		MaxAge: cfg.SessionMaxAge,
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
	})

	// 6. レートリミッター（configはreq/min単位、rate.Limitはreq/sec単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.AuthRate = rate.Limit(float64(cfg.RateLimitAuth) / 60.0)
	rateLimiterCfg.AuthBurst = cfg.RateLimitAuth
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		SessionValidator:  sessions,
		UserResolver:      directory,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		AuthService: authService,
		Sessions:    sessions,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},

		Metrics:  collector,
		Gatherer: promRegistry,

		HealthPinger: &mongoPinger{client: client},
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runIndexes はデータストアのインデックスを作成する。
// emailのユニークインデックスは初回ログインレースの二重作成防止に必須のため、
// サービス起動前に一度実行しておく。冪等なので再実行は安全。
func runIndexes(cfg *config.Config) error {
	ctx := context.Background()

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return fmt.Errorf("failed to connect to datastore: %w", err)
	}
	defer func() {
		if err := database.Disconnect(ctx, client); err != nil {
			slog.Error("failed to disconnect from datastore", slog.String("error", err.Error()))
		}
	}()

	userRepo := repository.NewMongoUserRepo(client.Database(cfg.DatabaseName))
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	slog.Info("datastore indexes ensured")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
