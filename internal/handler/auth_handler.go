// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/umair/taskvault/internal/middleware"
	"github.com/umair/taskvault/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, name, email, password string) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	CurrentUser(ctx context.Context, tokenString string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
	TokenMaxAge  int // セッションCookieの有効期間（秒）
}

// AuthHandler はパスワード認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// --- リクエスト・レスポンス型 ---

// signupRequest はサインアップリクエストのボディ。
type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	ProfilePicURL *string `json:"profilePicUrl"`
}

// newUserResponse はmodel.UserからuserResponseを構築する。
// プロフィール画像未設定の場合はnullを返す。
func newUserResponse(user *model.User) userResponse {
	resp := userResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}
	if user.ProfilePicURL != "" {
		resp.ProfilePicURL = &user.ProfilePicURL
	}
	return resp
}

// Signup はユーザーを新規登録し、セッションCookieを設定する。
// POST /api/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解析できません"))
		return
	}

	user, token, err := h.service.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setTokenCookie(w, token)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"user": newUserResponse(user),
	})
}

// Login はメールアドレスとパスワードを検証し、セッションCookieを設定する。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解析できません"))
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setTokenCookie(w, token)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user": newUserResponse(user),
	})
}

// Logout はセッションCookieをクリアする。
// トークンはステートレスなため、サーバー側の破棄処理は不要。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearTokenCookie(w)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "ログアウトしました。",
	})
}

// CheckAuth は現在のログイン状態を返す。
// 認証ゲートの「プローブ」モード: トークンの欠落・不正・期限切れ・
// アカウント削除済みのいずれもエラーにせず {user: null} を返す。
// 無効なCookieはクリアする。
// GET /api/check-auth
func (h *AuthHandler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	cookie, err := r.Cookie(middleware.TokenCookieName)
	if err != nil || cookie.Value == "" {
		json.NewEncoder(w).Encode(map[string]any{"user": nil})
		return
	}

	user, err := h.service.CurrentUser(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		writeInternalError(w)
		return
	}
	if user == nil {
		// トークン不正またはアカウント削除済み。Cookieをクリアして未ログイン扱いにする
		h.clearTokenCookie(w)
		json.NewEncoder(w).Encode(map[string]any{"user": nil})
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"user": newUserResponse(user),
	})
}

// setTokenCookie はセッショントークンのHTTP Only Cookieを設定する。
func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.TokenMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearTokenCookie はセッショントークンのCookieをクリアする。
func (h *AuthHandler) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
