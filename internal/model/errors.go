// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrDuplicateEmail はemailのユニーク制約違反を表すセンチネルエラー。
// 同一emailの初回ログインが同時に走った場合、敗者側のinsertがこのエラーになる。
// 呼び出し側はFindByEmailの再実行で回復する。
var ErrDuplicateEmail = errors.New("duplicate email")

// APIError は統一エラーフォーマットを表す。
// エラーコードとUIに表示する原因カテゴリを含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthVerificationFailed = "AUTH_VERIFICATION_FAILED"
	ErrCodeUserLookupFailed       = "USER_LOOKUP_FAILED"
	ErrCodeProviderNotFound       = "PROVIDER_NOT_FOUND"
	ErrCodeInvalidState           = "INVALID_STATE"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
)

// NewAuthVerificationFailedError はプロバイダー検証失敗エラーを生成する。
// このリクエストに対しては致命的。部分的なセッションは発行されない。
func NewAuthVerificationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthVerificationFailed,
		Message:  fmt.Sprintf("外部プロバイダーでの認証に失敗しました: %s", reason),
		Category: "auth",
		Action:   "時間をおいて再度ログインしてください。",
	}
}

// NewUserLookupFailedError はユーザーストア障害エラーを生成する。
func NewUserLookupFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUserLookupFailed,
		Message:  fmt.Sprintf("ユーザー情報の取得に失敗しました: %s", reason),
		Category: "system",
		Action:   "時間をおいて再度お試しください。",
	}
}

// NewProviderNotFoundError は未登録プロバイダーエラーを生成する。
func NewProviderNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderNotFound,
		Message:  fmt.Sprintf("未対応の認証プロバイダーです: %s", name),
		Category: "validation",
		Action:   "対応しているプロバイダーを指定してください。",
	}
}

// NewInvalidStateError はOAuth stateパラメータ不一致エラーを生成する。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  "認証フローのstateパラメータが一致しません。",
		Category: "auth",
		Action:   "ログインを最初からやり直してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
