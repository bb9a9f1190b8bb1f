package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/umair/taskvault/internal/model"
	"github.com/umair/taskvault/internal/repository"
	"github.com/umair/taskvault/internal/storage"
)

// BlobStore はアップロードサービスが必要とするオブジェクトストレージインターフェース。
// storage.Clientの部分集合として定義する。
type BlobStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	UploadPublic(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Service はファイルアップロードのサービス層。
// MIME検証 → 旧ブロブ削除 → アップロード → ユーザー行の更新、の順で処理する。
// アップロード成功後の行更新失敗は補償しない（孤児ブロブが残り得る）。
type Service struct {
	userRepo   repository.UserRepository
	blobs      BlobStore
	presignTTL time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, blobs BlobStore, presignTTL time.Duration) *Service {
	return &Service{
		userRepo:   userRepo,
		blobs:      blobs,
		presignTTL: presignTTL,
	}
}

// UploadTaskPDF はタスクPDFをアップロードし、署名付きURLを返す。
// Content-Typeがapplication/pdf以外の場合はネットワークアクセス前に
// INVALID_FILE_TYPEエラーで拒否する。
// 既存のPDFがある場合は先に削除する。削除失敗はログに記録して続行する。
func (s *Service) UploadTaskPDF(ctx context.Context, userID, filename, contentType string, body io.Reader) (string, error) {
	if contentType != "application/pdf" {
		return "", model.NewInvalidFileTypeError("PDFファイル")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}

	// 旧PDFの削除。失敗してもアップロードは続行する
	if user.PDFKey != "" {
		if err := s.blobs.Delete(ctx, user.PDFKey); err != nil {
			slog.Error("failed to delete old task pdf",
				slog.String("user_id", userID),
				slog.String("key", user.PDFKey),
				slog.String("error", err.Error()),
			)
		}
	}

	key := newObjectKey(taskPDFFolder, filename)
	if err := s.blobs.Upload(ctx, key, body, contentType); err != nil {
		return "", fmt.Errorf("failed to upload pdf: %w", err)
	}

	if err := s.userRepo.UpdatePDFKey(ctx, userID, key); err != nil {
		return "", fmt.Errorf("failed to record pdf key: %w", err)
	}

	url, err := s.blobs.PresignGet(ctx, key, s.presignTTL)
	if err != nil {
		return "", fmt.Errorf("failed to presign pdf url: %w", err)
	}

	return url, nil
}

// UploadProfilePic はプロフィール画像をアップロードし、公開URLを返す。
// Content-Typeがimage/*以外の場合はネットワークアクセス前に
// INVALID_FILE_TYPEエラーで拒否する。
// 既存の画像がある場合は先に削除する。削除失敗はログに記録して続行する。
func (s *Service) UploadProfilePic(ctx context.Context, userID, filename, contentType string, body io.Reader) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", model.NewInvalidFileTypeError("画像ファイル")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}

	// 旧画像の削除。失敗してもアップロードは続行する
	if user.ProfilePicURL != "" {
		oldKey := storage.KeyFromURL(user.ProfilePicURL)
		if oldKey != "" {
			if err := s.blobs.Delete(ctx, oldKey); err != nil {
				slog.Error("failed to delete old profile pic",
					slog.String("user_id", userID),
					slog.String("key", oldKey),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	key := newObjectKey(profilePicFolder, filename)
	url, err := s.blobs.UploadPublic(ctx, key, body, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload profile pic: %w", err)
	}

	if err := s.userRepo.UpdateProfilePicURL(ctx, userID, url); err != nil {
		return "", fmt.Errorf("failed to record profile pic url: %w", err)
	}

	return url, nil
}
