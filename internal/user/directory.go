// Package user はユーザーディレクトリのドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/gatehouse/internal/model"
	"github.com/hitoshi/gatehouse/internal/repository"
)

// NameSanitizer はプロバイダー由来の表示名を保存前に正規化するインターフェース。
type NameSanitizer interface {
	Sanitize(name string) string
}

// UserMetrics は新規ユーザー作成のメトリクス記録インターフェース。
type UserMetrics interface {
	RecordUserCreated()
}

// nopMetrics はメトリクス未配線時のno-op実装。
type nopMetrics struct{}

func (nopMetrics) RecordUserCreated() {}

// Directory はemailをキーとするユーザーの検索・作成を提供するサービス層。
type Directory struct {
	repo      repository.UserRepository
	sanitizer NameSanitizer
	metrics   UserMetrics
}

// NewDirectory はDirectoryを生成する。metricsはnilでもよい。
func NewDirectory(repo repository.UserRepository, sanitizer NameSanitizer, metrics UserMetrics) *Directory {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Directory{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// FindByID は指定IDのユーザーを返す。見つからない場合はnilを返す。
func (d *Directory) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindByEmail は指定emailのユーザーを返す。見つからない場合はnilを返す。
func (d *Directory) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := d.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindOrCreate はemailに対応するユーザーを返し、存在しなければ新規作成する。
// 既存ユーザーの場合、プロバイダーが異なるnameを報告していても保存済みの
// nameは更新しない（再ログインでレコードは変化しない）。
//
// 検索してから挿入する2段階の操作であり、単一操作としてのアトミック性はない。
// 同一の新規emailで同時にログインが走った場合はemailのユニークインデックスが
// 二重作成を防ぎ、敗者は検索を再実行して勝者のレコードを返す。
func (d *Directory) FindOrCreate(ctx context.Context, email, name string) (*model.User, error) {
	existing, err := d.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	newUser := &model.User{
		Email:     email,
		Name:      d.sanitizer.Sanitize(name),
		CreatedAt: time.Now(),
	}

	id, err := d.repo.Insert(ctx, newUser)
	if errors.Is(err, model.ErrDuplicateEmail) {
		// レースの敗者: 勝者が作成したレコードを返す
		winner, findErr := d.repo.FindByEmail(ctx, email)
		if findErr != nil {
			return nil, fmt.Errorf("failed to re-find user after duplicate key: %w", findErr)
		}
		if winner == nil {
			return nil, fmt.Errorf("user vanished after duplicate key on %s: %w", email, err)
		}
		return winner, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	newUser.ID = id
	d.metrics.RecordUserCreated()
	slog.Info("new user created",
		slog.String("user_id", id),
		slog.String("email", email),
	)

	return newUser, nil
}
