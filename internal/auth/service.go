package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/umair/taskvault/internal/model"
	"github.com/umair/taskvault/internal/repository"
)

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   *TokenManager
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, tokens *TokenManager) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

// Signup はユーザーを新規登録し、セッショントークンを発行する。
// メールアドレスが既に登録済みの場合はEMAIL_TAKENエラーを返す。
func (s *Service) Signup(ctx context.Context, name, email, password string) (*model.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))

	if name == "" || email == "" || password == "" {
		return nil, "", model.NewValidationError("name, email, password は必須です")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing email: %w", err)
	}
	if existing != nil {
		return nil, "", model.NewEmailTakenError()
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// 事前チェック後に同じメールで登録が割り込んだ場合も同じエラーにする
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", model.NewEmailTakenError()
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return user, token, nil
}

// Login はメールアドレスとパスワードを検証し、セッショントークンを発行する。
// 未登録メールとパスワード誤りは同一のINVALID_CREDENTIALSエラーで返す
// （どちらが誤っているかを外部から判別できないようにする）。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, "", model.NewInvalidCredentialsError()
	}

	ok, err := ComparePassword(password, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("failed to compare password: %w", err)
	}
	if !ok {
		return nil, "", model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return user, token, nil
}

// CurrentUser はトークンを検証し、対応するユーザーを返す。
// トークン不正・期限切れ・アカウント削除済みの場合は (nil, nil) を返す
// （check-authのソフトフェイル用。呼び出し側はエラーではなく未ログインとして扱う）。
func (s *Service) CurrentUser(ctx context.Context, tokenString string) (*model.User, error) {
	userID, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}
