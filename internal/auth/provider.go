// Package auth は外部IdPとのリダイレクト型認証ハンドシェイクを提供する。
package auth

import (
	"context"
	"sort"
)

// Identity はプロバイダーの検証済みアサーションから抽出したユーザー情報。
type Identity struct {
	Email string
	Name  string
}

// Provider は外部認証プロバイダーの2操作契約。
// プロバイダー固有のハンドシェイク（OAuth/OpenID等）はこの背後に隠れる。
type Provider interface {
	// AuthorizeURL はユーザーをリダイレクトさせる認可URLを生成する。
	// stateはCSRF対策のnonceで、コールバックでそのまま返ってくる。
	AuthorizeURL(state string) string

	// Exchange はコールバックで受け取った認可コードを検証し、
	// ユーザーのIdentityを返す。検証失敗はエラー。
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// Registry は名前をキーとするプロバイダーの集合。
// 起動時に構築し、以降は読み取り専用で使う。
type Registry struct {
	providers map[string]Provider
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register はプロバイダーを名前付きで登録する。同名の再登録は上書き。
func (r *Registry) Register(name string, p Provider) {
	r.providers[name] = p
}

// Lookup は名前に対応するプロバイダーを返す。
func (r *Registry) Lookup(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names は登録済みプロバイダー名をソート順で返す。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
