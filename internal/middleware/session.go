// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/gatehouse/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに現在ユーザーを格納するためのキー。
var userContextKey = contextKey("current_user")

// SessionValidator はセッションCookieの検証インターフェース。
// session.Managerの部分集合として定義する。
type SessionValidator interface {
	// Validate はリクエストのセッションCookieからユーザーIDを返す。
	// 無効・不在の場合は空文字列。
	Validate(r *http.Request) string
}

// UserResolver はユーザーIDからユーザーを解決するインターフェース。
type UserResolver interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewSessionMiddleware はセッションCookieから現在ユーザーを解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieが無い・無効・ユーザーが存在しない場合は匿名のまま通す
// （エラーにはしない）。ストア障害のみ500を返す。
func NewSessionMiddleware(validator SessionValidator, users UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := validator.Validate(r)
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				slog.Error("failed to resolve session user",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				// 署名は正しいがユーザーが消えている。匿名として扱う。
				next.ServeHTTP(w, r)
				return
			}

			ctx := ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser は認証済みユーザーを必須とするミドルウェア。
// SessionMiddlewareの後段に配置する。匿名リクエストには401を返す。
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserFromContext はリクエストコンテキストから現在ユーザーを取得する。
// 匿名リクエストの場合はfalseを返す。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// UserIDFromContext はリクエストコンテキストから現在ユーザーのIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("no authenticated user in context")
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストに現在ユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
// ロギングミドルウェアが仕込んだ受け皿があればユーザーIDを書き込み、
// 前段のロギングがレスポンス完了後にuser_idを出力できるようにする。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	if user != nil {
		if fields, ok := ctx.Value(logFieldsContextKey).(*requestLogFields); ok {
			fields.userID = user.ID
		}
	}
	return context.WithValue(ctx, userContextKey, user)
}
