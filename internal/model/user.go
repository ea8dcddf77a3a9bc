// Package model はドメインモデルを定義する。
package model

import "time"

// User は外部IdP経由でログインしたユーザーを表す。
// IDはドキュメントストアが採番する不透明な識別子（ObjectIDの16進表現）。
// Emailは初回ログイン時にプロバイダーが報告した値をそのまま保持する
// （大文字小文字の正規化は行わない）。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}
