package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/umair/taskvault/internal/model"
	"github.com/umair/taskvault/internal/repository"
	"github.com/umair/taskvault/internal/security"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn      func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn   func(ctx context.Context, email string) (*model.User, error)
	updateProfileFn func(ctx context.Context, id, name, email string) error
}

func (m *mockUserRepo) Create(_ context.Context, _ *model.User) error {
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id, name, email string) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, id, name, email)
	}
	return nil
}

func (m *mockUserRepo) UpdateProfilePicURL(_ context.Context, _, _ string) error {
	return nil
}

func (m *mockUserRepo) UpdatePDFKey(_ context.Context, _, _ string) error {
	return nil
}

type mockSigner struct {
	presignGetFn func(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func (m *mockSigner) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.presignGetFn != nil {
		return m.presignGetFn(ctx, key, ttl)
	}
	return "https://signed.example.com/" + key, nil
}

func newTestService(repo *mockUserRepo, signer *mockSigner) *Service {
	if signer == nil {
		signer = &mockSigner{}
	}
	return NewService(repo, signer, security.NewTextSanitizer(), 15*time.Minute)
}

// --- UpdateProfile ---

func TestService_UpdateProfile_Success(t *testing.T) {
	var updatedName, updatedEmail string
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Name: "旧名前", Email: "old@example.com"}, nil
		},
		updateProfileFn: func(ctx context.Context, id, name, email string) error {
			updatedName, updatedEmail = name, email
			return nil
		},
	}
	svc := newTestService(repo, nil)

	user, err := svc.UpdateProfile(context.Background(), "user-id-1", "新名前", "New@Example.com")
	if err != nil {
		t.Fatalf("UpdateProfile に失敗: %v", err)
	}
	if user.Name != "新名前" {
		t.Errorf("Name = %q, want %q", user.Name, "新名前")
	}
	// メールアドレスは小文字に正規化される
	if updatedEmail != "new@example.com" {
		t.Errorf("保存されたEmail = %q, want %q", updatedEmail, "new@example.com")
	}
	if updatedName != "新名前" {
		t.Errorf("保存されたName = %q, want %q", updatedName, "新名前")
	}
}

// メールアドレス変更時に重複チェックが行われることを検証
func TestService_UpdateProfile_EmailChangeToTaken(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Name: "名前", Email: "mine@example.com"}, nil
		},
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "someone-else", Email: email}, nil
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.UpdateProfile(context.Background(), "user-id-1", "名前", "taken@example.com")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmailTaken {
		t.Errorf("EMAIL_TAKENエラーが返るべき: %v", err)
	}
}

// 重複再チェック通過後にユニーク制約違反が起きた場合（同時変更の競合）も
// EMAIL_TAKENエラーになることを検証
func TestService_UpdateProfile_ConcurrentDuplicate_EmailTaken(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Name: "名前", Email: "mine@example.com"}, nil
		},
		updateProfileFn: func(ctx context.Context, id, name, email string) error {
			return repository.ErrDuplicateEmail
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.UpdateProfile(context.Background(), "user-id-1", "名前", "racing@example.com")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmailTaken {
		t.Errorf("EMAIL_TAKENエラーが返るべき: %v", err)
	}
}

// 自分の現在のメールアドレスのままなら重複チェックしないことを検証
func TestService_UpdateProfile_SameEmail_NoDupCheck(t *testing.T) {
	findByEmailCalled := false
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Name: "名前", Email: "mine@example.com"}, nil
		},
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			findByEmailCalled = true
			return nil, nil
		},
	}
	svc := newTestService(repo, nil)

	if _, err := svc.UpdateProfile(context.Background(), "user-id-1", "新名前", "mine@example.com"); err != nil {
		t.Fatalf("UpdateProfile に失敗: %v", err)
	}
	if findByEmailCalled {
		t.Error("メールアドレス未変更時は重複チェックを行わない")
	}
}

// 名前のHTMLタグがサニタイズされることを検証
func TestService_UpdateProfile_SanitizesName(t *testing.T) {
	var updatedName string
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Name: "名前", Email: "mine@example.com"}, nil
		},
		updateProfileFn: func(ctx context.Context, id, name, email string) error {
			updatedName = name
			return nil
		},
	}
	svc := newTestService(repo, nil)

	if _, err := svc.UpdateProfile(context.Background(), "user-id-1", `<script>alert(1)</script>Umair`, "mine@example.com"); err != nil {
		t.Fatalf("UpdateProfile に失敗: %v", err)
	}
	if updatedName != "Umair" {
		t.Errorf("保存されたName = %q, want %q", updatedName, "Umair")
	}
}

func TestService_UpdateProfile_UserNotFound(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, nil)

	_, err := svc.UpdateProfile(context.Background(), "deleted-user", "名前", "a@example.com")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("USER_NOT_FOUNDエラーが返るべき: %v", err)
	}
}

func TestService_UpdateProfile_MissingFields(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, nil)

	for _, c := range []struct{ name, email string }{
		{"", "a@example.com"},
		{"名前", ""},
	} {
		_, err := svc.UpdateProfile(context.Background(), "user-id-1", c.name, c.email)
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
			t.Errorf("UpdateProfile(%q, %q): VALIDATION_FAILEDエラーが返るべき: %v", c.name, c.email, err)
		}
	}
}

// --- ProfilePicURL ---

func TestService_ProfilePicURL_ReturnsStoredURL(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, ProfilePicURL: "https://bucket.s3.region.amazonaws.com/profile-pics/abc.png"}, nil
		},
	}
	svc := newTestService(repo, nil)

	url, err := svc.ProfilePicURL(context.Background(), "user-id-1")
	if err != nil {
		t.Fatalf("ProfilePicURL に失敗: %v", err)
	}
	if url != "https://bucket.s3.region.amazonaws.com/profile-pics/abc.png" {
		t.Errorf("url = %q", url)
	}
}

func TestService_ProfilePicURL_EmptyWhenUnset(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
	}
	svc := newTestService(repo, nil)

	url, err := svc.ProfilePicURL(context.Background(), "user-id-1")
	if err != nil {
		t.Fatalf("ProfilePicURL に失敗: %v", err)
	}
	if url != "" {
		t.Errorf("未設定時は空文字が返るべき: %q", url)
	}
}

// --- TaskPDFURL ---

func TestService_TaskPDFURL_PresignsStoredKey(t *testing.T) {
	var presignedKey string
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, PDFKey: "task-pdfs/abc.pdf"}, nil
		},
	}
	signer := &mockSigner{
		presignGetFn: func(ctx context.Context, key string, ttl time.Duration) (string, error) {
			presignedKey = key
			return "https://signed.example.com/" + key + "?X-Amz-Signature=sig", nil
		},
	}
	svc := newTestService(repo, signer)

	url, err := svc.TaskPDFURL(context.Background(), "user-id-1")
	if err != nil {
		t.Fatalf("TaskPDFURL に失敗: %v", err)
	}
	if presignedKey != "task-pdfs/abc.pdf" {
		t.Errorf("署名対象キー = %q, want %q", presignedKey, "task-pdfs/abc.pdf")
	}
	if url == "" {
		t.Error("署名付きURLが返るべき")
	}
}

// PDF未アップロード時は署名を行わず空文字で返ることを検証
func TestService_TaskPDFURL_EmptyWhenNoPDF(t *testing.T) {
	presignCalled := false
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
	}
	signer := &mockSigner{
		presignGetFn: func(ctx context.Context, key string, ttl time.Duration) (string, error) {
			presignCalled = true
			return "", nil
		},
	}
	svc := newTestService(repo, signer)

	url, err := svc.TaskPDFURL(context.Background(), "user-id-1")
	if err != nil {
		t.Fatalf("TaskPDFURL に失敗: %v", err)
	}
	if url != "" {
		t.Errorf("PDF未設定時は空文字が返るべき: %q", url)
	}
	if presignCalled {
		t.Error("PDF未設定時は署名を行わない")
	}
}

func TestService_TaskPDFURL_SignerError(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, PDFKey: "task-pdfs/abc.pdf"}, nil
		},
	}
	signer := &mockSigner{
		presignGetFn: func(ctx context.Context, key string, ttl time.Duration) (string, error) {
			return "", errors.New("presign failed")
		},
	}
	svc := newTestService(repo, signer)

	if _, err := svc.TaskPDFURL(context.Background(), "user-id-1"); err == nil {
		t.Error("署名失敗はエラーとして返すべき")
	}
}
