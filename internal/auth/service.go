package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/gatehouse/internal/model"
)

// UserDirectory は認証フローが必要とするユーザーディレクトリのインターフェース。
type UserDirectory interface {
	FindOrCreate(ctx context.Context, email, name string) (*model.User, error)
}

// MetricsRecorder はログイン結果のメトリクス記録のインターフェース。
type MetricsRecorder interface {
	RecordLoginSuccess(provider string)
	RecordLoginFailure(provider string)
}

// nopMetrics はメトリクス未配線時のno-op実装。
type nopMetrics struct{}

func (nopMetrics) RecordLoginSuccess(string) {}
func (nopMetrics) RecordLoginFailure(string) {}

// Service は認証フローのオーケストレーションを提供する。
// 往路: 認可URLの生成。復路: アサーション検証からユーザー解決まで。
// セッションの発行はHTTP層（Cookie書き込み）の責務なのでここでは行わない。
type Service struct {
	registry  *Registry
	directory UserDirectory
	metrics   MetricsRecorder
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(registry *Registry, directory UserDirectory, metrics MetricsRecorder) *Service {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Service{
		registry:  registry,
		directory: directory,
		metrics:   metrics,
	}
}

// AuthorizeURL は指定プロバイダーの認可URLを生成する。
// 未登録のプロバイダー名の場合はPROVIDER_NOT_FOUNDエラーを返す。
func (s *Service) AuthorizeURL(provider, state string) (string, error) {
	p, ok := s.registry.Lookup(provider)
	if !ok {
		return "", model.NewProviderNotFoundError(provider)
	}
	return p.AuthorizeURL(state), nil
}

// HandleCallback はプロバイダーからのコールバックを処理する。
// アサーションを検証し、email/nameを抽出し、ユーザーを解決（なければ作成）して返す。
// 検証失敗はこのリクエストに対して致命的で、リトライせず、セッションも発行されない。
func (s *Service) HandleCallback(ctx context.Context, provider, code string) (*model.User, error) {
	p, ok := s.registry.Lookup(provider)
	if !ok {
		return nil, model.NewProviderNotFoundError(provider)
	}

	identity, err := p.Exchange(ctx, code)
	if err != nil {
		s.metrics.RecordLoginFailure(provider)
		slog.Error("provider assertion verification failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", model.NewAuthVerificationFailedError(provider), err)
	}

	user, err := s.directory.FindOrCreate(ctx, identity.Email, identity.Name)
	if err != nil {
		s.metrics.RecordLoginFailure(provider)
		return nil, fmt.Errorf("%w: %w", model.NewUserLookupFailedError(provider), err)
	}

	s.metrics.RecordLoginSuccess(provider)
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("provider", provider),
	)

	return user, nil
}

// Providers は登録済みプロバイダー名を返す。
func (s *Service) Providers() []string {
	return s.registry.Names()
}
