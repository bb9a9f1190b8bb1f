// Package user はユーザープロフィール管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/umair/taskvault/internal/model"
	"github.com/umair/taskvault/internal/repository"
	"github.com/umair/taskvault/internal/security"
)

// URLSigner は保存済みオブジェクトキーの署名付きURL発行インターフェース。
// storage.Clientの部分集合として定義する。
type URLSigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Service はプロフィール管理のサービス層。
type Service struct {
	userRepo   repository.UserRepository
	signer     URLSigner
	sanitizer  security.TextSanitizerService
	presignTTL time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, signer URLSigner, sanitizer security.TextSanitizerService, presignTTL time.Duration) *Service {
	return &Service{
		userRepo:   userRepo,
		signer:     signer,
		sanitizer:  sanitizer,
		presignTTL: presignTTL,
	}
}

// UpdateProfile は名前とメールアドレスを更新する。
// メールアドレスを変更する場合は重複を再チェックし、使用済みならEMAIL_TAKENエラーを返す。
func (s *Service) UpdateProfile(ctx context.Context, userID, name, email string) (*model.User, error) {
	name = s.sanitizer.Sanitize(name)
	email = strings.TrimSpace(strings.ToLower(email))

	if name == "" || email == "" {
		return nil, model.NewValidationError("name, email は必須です")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if email != user.Email {
		existing, err := s.userRepo.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing email: %w", err)
		}
		if existing != nil {
			return nil, model.NewEmailTakenError()
		}
	}

	if err := s.userRepo.UpdateProfile(ctx, userID, name, email); err != nil {
		// 再チェック後に同じメールへの変更が割り込んだ場合も同じエラーにする
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	user.Name = name
	user.Email = email
	return user, nil
}

// ProfilePicURL はプロフィール画像の保存済みURLを返す。
// 未設定の場合は空文字を返す（ハンドラーはnullとしてレスポンスする）。
func (s *Service) ProfilePicURL(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}

	return user.ProfilePicURL, nil
}

// TaskPDFURL は保存済みタスクPDFの署名付きURLを発行して返す。
// PDFが未アップロードの場合は空文字を返す。
// オブジェクトの存在確認は行わない（削除済みキーのURLは取得時に404になる）。
func (s *Service) TaskPDFURL(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}
	if user.PDFKey == "" {
		return "", nil
	}

	url, err := s.signer.PresignGet(ctx, user.PDFKey, s.presignTTL)
	if err != nil {
		return "", fmt.Errorf("failed to presign pdf url: %w", err)
	}

	return url, nil
}
