// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gatehouse/internal/middleware"
	"github.com/hitoshi/gatehouse/internal/model"
	"github.com/hitoshi/gatehouse/internal/multimap"
)

const (
	// oauthStateCookie は往路で発行したstate nonceを保持するCookie。
	oauthStateCookie = "oauth_state"

	// authNextCookie はログイン完了後の戻り先パスを保持するCookie。
	authNextCookie = "auth_next"

	// authFlowCookieMaxAge は認証フロー中だけ生きるCookieの有効期間（秒）。
	authFlowCookieMaxAge = 600
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	AuthorizeURL(provider, state string) (string, error)
	HandleCallback(ctx context.Context, provider, code string) (*model.User, error)
}

// SessionWriter はセッションCookieの発行・失効インターフェース。
// session.Managerの部分集合として定義する。
type SessionWriter interface {
	Issue(w http.ResponseWriter, userID string)
	Revoke(w http.ResponseWriter)
}

// SessionMetrics はログアウトのメトリクス記録インターフェース。
type SessionMetrics interface {
	RecordSessionRevoked()
}

// nopSessionMetrics はメトリクス未配線時のno-op実装。
type nopSessionMetrics struct{}

func (nopSessionMetrics) RecordSessionRevoked() {}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthHandler は外部プロバイダー認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionWriter
	metrics  SessionMetrics
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, sessions SessionWriter, metrics SessionMetrics, config AuthHandlerConfig) *AuthHandler {
	if metrics == nil {
		metrics = nopSessionMetrics{}
	}
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		metrics:  metrics,
		config:   config,
	}
}

// HandleAuth は認証フローの往路と復路を1つのエンドポイントで処理する。
// GET /auth/{provider}
//
// codeパラメータが無ければ往路: state nonceを発行してプロバイダーへリダイレクト。
// codeパラメータがあれば復路: stateを検証し、コードを交換してセッションを発行。
func (h *AuthHandler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	params := multimap.FromValues(r.URL.Query())

	if params.GetDefault("code", "") == "" {
		h.beginAuth(w, r, provider, params)
		return
	}
	h.completeAuth(w, r, provider, params)
}

// beginAuth は認証フローの往路を処理する。
func (h *AuthHandler) beginAuth(w http.ResponseWriter, r *http.Request, provider string, params *multimap.Map[string, string]) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate auth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	url, err := h.service.AuthorizeURL(provider, state)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	// 1. state nonceをCookieに保存（復路で検証する）
	h.setFlowCookie(w, oauthStateCookie, state)

	// 2. ログイン完了後の戻り先を保存（相対パスのみ）
	if next := params.GetDefault("next", ""); isSafeNextPath(next) {
		h.setFlowCookie(w, authNextCookie, next)
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// completeAuth は認証フローの復路を処理する。
func (h *AuthHandler) completeAuth(w http.ResponseWriter, r *http.Request, provider string, params *multimap.Map[string, string]) {
	// 1. state nonceの検証
	state := params.GetDefault("state", "")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("auth state mismatch",
			slog.String("provider", provider),
		)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidStateError())
		return
	}
	h.clearFlowCookie(w, oauthStateCookie)

	// 2. コード交換とユーザー解決
	user, err := h.service.HandleCallback(r.Context(), provider, params.GetDefault("code", ""))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	// 3. セッションCookieの発行
	h.sessions.Issue(w, user.ID)

	// 4. 戻り先へリダイレクト
	next := "/"
	if nextCookie, err := r.Cookie(authNextCookie); err == nil && isSafeNextPath(nextCookie.Value) {
		next = nextCookie.Value
	}
	h.clearFlowCookie(w, authNextCookie)

	http.Redirect(w, r, next, http.StatusTemporaryRedirect)
}

// Logout はセッションCookieをクリアしてトップへリダイレクトする。
// GET /logout
// 匿名リクエストに対してもCookieはクリアするが、失効メトリクスは
// 有効なセッションを持っていた場合のみ記録する。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Revoke(w)

	if user, ok := middleware.UserFromContext(r.Context()); ok {
		h.metrics.RecordSessionRevoked()
		slog.Info("user logged out", slog.String("user_id", user.ID))
	}

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Me は現在のログインユーザー情報を返す。
// GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUserNotFoundError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

// writeAuthError はAPIErrorのコードに応じたHTTPステータスでエラーを書き込む。
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("auth flow failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	status := http.StatusInternalServerError
	switch apiErr.Code {
	case model.ErrCodeProviderNotFound:
		status = http.StatusNotFound
	case model.ErrCodeInvalidState:
		status = http.StatusBadRequest
	}

	slog.Error("auth flow failed",
		slog.String("code", apiErr.Code),
		slog.String("error", err.Error()),
	)
	middleware.WriteErrorResponse(w, status, apiErr)
}

// setFlowCookie は認証フロー中だけ生きる短命Cookieを設定する。
func (h *AuthHandler) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   authFlowCookieMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearFlowCookie は認証フロー用Cookieを削除する。
func (h *AuthHandler) clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// isSafeNextPath は戻り先パスが同一サイト内の相対パスかどうかを判定する。
// "//evil.example" のようなスキーム相対URLはオープンリダイレクトになるため拒否する。
func isSafeNextPath(next string) bool {
	if next == "" || !strings.HasPrefix(next, "/") {
		return false
	}
	return !strings.HasPrefix(next, "//") && !strings.HasPrefix(next, "/\\")
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
