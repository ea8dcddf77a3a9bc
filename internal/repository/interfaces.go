// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/gatehouse/internal/model"
)

// UserRepository はユーザーレコードの永続化インターフェース。
// ドキュメントストアのusersコレクションに対応する。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。
	// 見つからない場合（IDが不正な形式の場合も含む）はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定emailのユーザーを取得する。見つからない場合はnilを返す。
	// emailの比較は大文字小文字を区別する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Insert はユーザーを新規作成し、ストアが採番したIDを返す。
	// emailのユニーク制約に違反した場合はmodel.ErrDuplicateEmailを返す。
	Insert(ctx context.Context, user *model.User) (string, error)
}
