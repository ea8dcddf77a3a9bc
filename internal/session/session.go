// Package session は署名付きCookieによるセッション管理を提供する。
//
// トークンはユーザーIDをそのまま文字列化したもので、サーバー側の
// セッションテーブルは持たない。Cookie値はHMACで署名されており、
// クライアント側での改ざんは検知できるが、漏洩した署名済みCookieは
// 有効期限まで使われ得る。本番で失効管理が必要になった場合は
// サーバー側のトークンストアを重ねること（このパッケージの契約自体は
// 変えずに上に足す）。
package session

import (
	"log/slog"
	"net/http"
)

// DefaultCookieName はセッションCookieのデフォルト名。
const DefaultCookieName = "user_id"

// Config はManagerの設定。
type Config struct {
	// CookieName はセッションCookieの名前。空の場合はDefaultCookieName。
	CookieName string

	// Secret はHMAC署名の鍵。必須。
	Secret []byte

	// MaxAge はCookieとトークンの有効期間（秒）。
	MaxAge int

	// Domain はCookieのDomain属性。
	Domain string

	// Secure はCookieのSecure属性。
	Secure bool
}

// Manager はセッショントークンの発行・検証・失効を行う。
// リクエストをまたぐ共有可変状態は持たず、複数goroutineから同時に使用できる。
type Manager struct {
	cfg Config
}

// NewManager はManagerを生成する。Secretが空の場合はpanicする。
func NewManager(cfg Config) *Manager {
	if len(cfg.Secret) == 0 {
		panic("session: secret must be provided")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &Manager{cfg: cfg}
}

// Issue はuserIDを表す署名済みセッションCookieをレスポンスに設定する。
func (m *Manager) Issue(w http.ResponseWriter, userID string) {
	signed := sign(m.cfg.Secret, userID, timeNow())
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		Domain:   m.cfg.Domain,
		MaxAge:   m.cfg.MaxAge,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Validate はリクエストのセッションCookieを検証し、参照先のユーザーIDを返す。
// Cookieが無い・署名が不正・期限切れの場合は空文字列を返す。
// いずれもエラーではなく匿名として扱う。
func (m *Manager) Validate(r *http.Request) string {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}

	userID, ok := verify(m.cfg.Secret, cookie.Value, m.cfg.MaxAge, timeNow())
	if !ok {
		slog.Debug("session cookie rejected",
			slog.String("cookie", m.cfg.CookieName),
		)
		return ""
	}
	return userID
}

// Revoke はセッションCookieをクリアする。
// サーバー側に失効させる状態は無いため、Cookieの削除がそのまま失効になる。
func (m *Manager) Revoke(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
