// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/umair/taskvault/internal/model"
)

// TokenCookieName はセッショントークンを保持するCookieの名前。
const TokenCookieName = "token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// userIDHolderKey はアクセスログ用ユーザーIDホルダーを格納するためのキー。
var userIDHolderKey = contextKey("user_id_holder")

// userIDHolder はロギングミドルウェアが仕込み、認証ミドルウェアが書き込む
// ユーザーIDの受け渡し先。context.Valueは下流にしか流れないため、
// 上流のロガーへは可変ホルダー経由で伝える。
type userIDHolder struct {
	id string
}

func (h *userIDHolder) set(id string) { h.id = id }

func (h *userIDHolder) get() string { return h.id }

func contextWithUserIDHolder(ctx context.Context, h *userIDHolder) context.Context {
	return context.WithValue(ctx, userIDHolderKey, h)
}

func userIDHolderFromContext(ctx context.Context) (*userIDHolder, bool) {
	h, ok := ctx.Value(userIDHolderKey).(*userIDHolder)
	return h, ok
}

// TokenVerifier はトークン検証のインターフェース。
// auth.TokenManagerの部分集合として定義する。
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

// AuthFailureRecorder は認証失敗メトリクスの記録インターフェース。
type AuthFailureRecorder interface {
	RecordAuthFailure()
}

// NewAuthMiddleware はHTTP Only CookieからJWTを読み取り検証するミドルウェアを返す。
// 検証済みユーザーIDをリクエストコンテキストに注入する。
// トークンの欠落・署名不正・期限切れはいずれも401 Unauthorizedになる。
// 検証は純粋な同期チェックであり、リトライは行わない。
func NewAuthMiddleware(verifier TokenVerifier, recorder AuthFailureRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからトークンを取得
			cookie, err := r.Cookie(TokenCookieName)
			if err != nil || cookie.Value == "" {
				rejectUnauthorized(w, recorder)
				return
			}

			// 2. 署名と有効期限を検証
			userID, err := verifier.Verify(cookie.Value)
			if err != nil {
				rejectUnauthorized(w, recorder)
				return
			}

			// 3. 検証済みユーザーIDをコンテキストに注入
			// アクセスログ用のホルダーにも書き込む
			if holder, ok := userIDHolderFromContext(r.Context()); ok {
				holder.set(userID)
			}
			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rejectUnauthorized は401レスポンスを書き込み、認証失敗を記録する。
func rejectUnauthorized(w http.ResponseWriter, recorder AuthFailureRecorder) {
	if recorder != nil {
		recorder.RecordAuthFailure()
	}
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
