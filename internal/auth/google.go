package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// GoogleConfig はGoogleプロバイダーの設定。
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なエンドポイントURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// HTTPClient は外部エンドポイントへのリクエストに使用するクライアント。
	// nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client
}

// Google はGoogle OAuth 2.0の認可コードフローでProvider契約を実装する。
type Google struct {
	cfg GoogleConfig
}

// NewGoogle はGoogleプロバイダーを生成する。
func NewGoogle(cfg GoogleConfig) *Google {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultGoogleAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultGoogleTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultGoogleUserInfoURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Google{cfg: cfg}
}

// AuthorizeURL はGoogleの認可URLを生成する。
// redirect_uriにはこのアプリのコールバックエンドポイントが入り、
// プロバイダーはそこへユーザーを送り返す。スコープはemailとprofile。
func (g *Google) AuthorizeURL(state string) string {
	params := url.Values{
		"client_id":     {g.cfg.ClientID},
		"redirect_uri":  {g.cfg.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	return g.cfg.AuthURL + "?" + params.Encode()
}

// Exchange は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
// どちらかの往復が失敗した場合はアサーション検証失敗としてエラーを返す。
func (g *Google) Exchange(ctx context.Context, code string) (*Identity, error) {
	accessToken, err := g.requestToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	identity, err := g.requestIdentity(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user identity: %w", err)
	}

	return identity, nil
}

// googleToken はトークンエンドポイントのレスポンス。
type googleToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// googleUserInfo はユーザー情報エンドポイントのレスポンス。
type googleUserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// requestToken は認可コードをアクセストークンに交換する。
func (g *Google) requestToken(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"redirect_uri":  {g.cfg.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := g.doJSON(req)
	if err != nil {
		return "", err
	}

	var token googleToken
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	return token.AccessToken, nil
}

// requestIdentity はアクセストークンでユーザー情報を取得する。
func (g *Google) requestIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	body, err := g.doJSON(req)
	if err != nil {
		return nil, err
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("empty email in user info response")
	}

	return &Identity{
		Email: info.Email,
		Name:  info.Name,
	}, nil
}

// doJSON はリクエストを実行し、2xx以外を失敗としてボディを返す。
func (g *Google) doJSON(req *http.Request) ([]byte, error) {
	resp, err := g.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// compile-time interface check
var _ Provider = (*Google)(nil)
