package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/umair/taskvault/internal/middleware"
	"github.com/umair/taskvault/internal/model"
)

// UserServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// UpdateProfile は名前とメールアドレスを更新する。
	UpdateProfile(ctx context.Context, userID, name, email string) (*model.User, error)
	// ProfilePicURL はプロフィール画像の保存済みURLを返す。未設定なら空文字。
	ProfilePicURL(ctx context.Context, userID string) (string, error)
}

// UserHandler はプロフィール管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateProfile は名前とメールアドレスを更新する。
// メールアドレス変更時は重複を再チェックする。
// PUT /api/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解析できません"))
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, req.Name, req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user": newUserResponse(user),
	})
}

// ProfilePic はプロフィール画像の保存済みURLを返す。
// 未設定の場合は {profilePicUrl: null} を返す（エラーにはしない）。
// GET /api/profile/profile-pic
func (h *UserHandler) ProfilePic(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	url, err := h.service.ProfilePicURL(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if url == "" {
		json.NewEncoder(w).Encode(map[string]any{"profilePicUrl": nil})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"profilePicUrl": url})
}
