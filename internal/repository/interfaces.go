// Package repository はデータアクセス層のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/umair/taskvault/internal/model"
)

// ErrDuplicateEmail はusersテーブルのメールアドレス一意制約違反を表す。
// 事前チェックをすり抜けた同時登録がユニークインデックスに当たった場合に返る。
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository はユーザーデータへのアクセスインターフェース。
type UserRepository interface {
	// Create はユーザーを新規作成する。
	Create(ctx context.Context, user *model.User) error
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateProfile は名前とメールアドレスを更新する。
	UpdateProfile(ctx context.Context, id, name, email string) error
	// UpdateProfilePicURL はプロフィール画像URLを更新する。
	UpdateProfilePicURL(ctx context.Context, id, url string) error
	// UpdatePDFKey はタスクPDFのオブジェクトキーを更新する。
	UpdatePDFKey(ctx context.Context, id, key string) error
}

// TaskRepository はタスクデータへのアクセスインターフェース。
// 読み書きはすべて所有者IDでスコープする。
type TaskRepository interface {
	// ListByUserID は指定ユーザーのタスクを作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Task, error)
	// Create はタスクを新規作成する。
	Create(ctx context.Context, task *model.Task) error
	// Update は (id, userID) で特定されるタスクの本文を更新する。
	// 該当行がない場合は更新後のタスクとしてnilを返す。
	Update(ctx context.Context, id, userID, text string) (*model.Task, error)
	// Delete は (id, userID) で特定されるタスクを削除する。
	// 削除された場合はtrueを返す。
	Delete(ctx context.Context, id, userID string) (bool, error)
}
