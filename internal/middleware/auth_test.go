package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/umair/taskvault/internal/auth"
)

// --- モック定義 ---

type mockVerifier struct {
	verifyFn func(tokenString string) (string, error)
}

func (m *mockVerifier) Verify(tokenString string) (string, error) {
	if m.verifyFn != nil {
		return m.verifyFn(tokenString)
	}
	return "", errors.New("invalid token")
}

type mockAuthFailureRecorder struct {
	count int
}

func (m *mockAuthFailureRecorder) RecordAuthFailure() {
	m.count++
}

func okHandler(t *testing.T, gotUserID *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("コンテキストからユーザーIDを取得できません: %v", err)
		}
		*gotUserID = userID
		w.WriteHeader(http.StatusOK)
	})
}

// 有効なCookieのリクエストが通過し、ユーザーIDが注入されることを検証
func TestAuthMiddleware_ValidCookie(t *testing.T) {
	verifier := &mockVerifier{
		verifyFn: func(tokenString string) (string, error) {
			if tokenString != "valid-token" {
				return "", errors.New("unexpected token")
			}
			return "user-id-1", nil
		},
	}
	recorder := &mockAuthFailureRecorder{}

	var gotUserID string
	handler := NewAuthMiddleware(verifier, recorder)(okHandler(t, &gotUserID))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "valid-token"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotUserID != "user-id-1" {
		t.Errorf("userID = %q, want %q", gotUserID, "user-id-1")
	}
	if recorder.count != 0 {
		t.Errorf("認証成功時は失敗メトリクスを記録しない: count=%d", recorder.count)
	}
}

// Cookie欠落で401になることを検証
func TestAuthMiddleware_MissingCookie(t *testing.T) {
	recorder := &mockAuthFailureRecorder{}
	handler := NewAuthMiddleware(&mockVerifier{}, recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("認証なしのリクエストがハンドラーに到達してはならない")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if recorder.count != 1 {
		t.Errorf("認証失敗メトリクス = %d, want 1", recorder.count)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("エラーレスポンスのデコードに失敗: %v", err)
	}
	if body.Code != "UNAUTHORIZED" {
		t.Errorf("code = %q, want %q", body.Code, "UNAUTHORIZED")
	}
}

// 不正トークンで401になることを検証
func TestAuthMiddleware_InvalidToken(t *testing.T) {
	recorder := &mockAuthFailureRecorder{}
	handler := NewAuthMiddleware(&mockVerifier{}, recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("不正トークンのリクエストがハンドラーに到達してはならない")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "garbage"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if recorder.count != 1 {
		t.Errorf("認証失敗メトリクス = %d, want 1", recorder.count)
	}
}

// 実際のTokenManagerと組み合わせて期限切れトークンが拒否されることを検証
func TestAuthMiddleware_ExpiredToken_RealVerifier(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", -time.Minute)
	token, err := tokens.Issue("user-id-1")
	if err != nil {
		t.Fatalf("Issue に失敗: %v", err)
	}

	handler := NewAuthMiddleware(tokens, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("期限切れトークンのリクエストがハンドラーに到達してはならない")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: token})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

// --- コンテキストヘルパー ---

func TestUserIDFromContext(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-id-1")

	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("UserIDFromContext に失敗: %v", err)
	}
	if userID != "user-id-1" {
		t.Errorf("userID = %q, want %q", userID, "user-id-1")
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("未注入のコンテキストはエラーになるべき")
	}
}
