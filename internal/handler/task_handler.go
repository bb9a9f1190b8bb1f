package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/umair/taskvault/internal/middleware"
	"github.com/umair/taskvault/internal/model"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	// List は呼び出し元ユーザーのタスクを新しい順で返す。
	List(ctx context.Context, userID string) ([]*model.Task, error)
	// Create はタスクを新規作成する。
	Create(ctx context.Context, userID, text string) (*model.Task, error)
	// Update は所有タスクの本文を更新する。
	Update(ctx context.Context, userID, taskID, text string) (*model.Task, error)
	// Delete は所有タスクを削除する。
	Delete(ctx context.Context, userID, taskID string) error
}

// TaskPDFURLProvider はタスクPDFの署名付きURL取得インターフェース。
// user.Serviceの部分集合として定義する。
type TaskPDFURLProvider interface {
	TaskPDFURL(ctx context.Context, userID string) (string, error)
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service     TaskServiceInterface
	pdfProvider TaskPDFURLProvider
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface, pdfProvider TaskPDFURLProvider) *TaskHandler {
	return &TaskHandler{
		service:     service,
		pdfProvider: pdfProvider,
	}
}

// --- リクエスト・レスポンス型 ---

// taskRequest はタスク作成・更新リクエストのボディ。
type taskRequest struct {
	Text string `json:"text"`
}

// taskResponse はタスクのレスポンス。
type taskResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// newTaskResponse はmodel.TaskからtaskResponseを構築する。
func newTaskResponse(task *model.Task) taskResponse {
	return taskResponse{
		ID:        task.ID,
		UserID:    task.UserID,
		Text:      task.Text,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
}

// List は呼び出し元ユーザーのタスク一覧を取得する。
// GET /api/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	tasks, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, newTaskResponse(t))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"tasks": resp,
	})
}

// Create はタスクを新規作成する。
// POST /api/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解析できません"))
		return
	}

	task, err := h.service.Create(r.Context(), userID, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(newTaskResponse(task))
}

// Update は所有タスクの本文を更新する。
// 存在しないIDと他ユーザー所有のIDは同じ404になる。
// PUT /api/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	taskID := chi.URLParam(r, "id")

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解析できません"))
		return
	}

	task, err := h.service.Update(r.Context(), userID, taskID, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newTaskResponse(task))
}

// Delete は所有タスクを削除する。
// DELETE /api/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	taskID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, taskID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "タスクを削除しました。",
	})
}

// TaskPDF は保存済みタスクPDFの署名付きURLを返す。
// PDF未アップロードの場合は {pdfUrl: null} を返す（エラーにはしない）。
// GET /api/tasks/task-pdf
func (h *TaskHandler) TaskPDF(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	url, err := h.pdfProvider.TaskPDFURL(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if url == "" {
		json.NewEncoder(w).Encode(map[string]any{"pdfUrl": nil})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"pdfUrl": url})
}

// --- 共通エラーレスポンス ---

// apiErrorResponse はAPIエラーのJSONレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInternalError は内部サーバーエラーの統一レスポンスを書き込む。
func writeInternalError(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// ストア層のエラー詳細はログのみに記録し、クライアントには漏らさない。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeInternalError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeTaskNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmailTaken, model.ErrCodeValidationFailed,
		model.ErrCodeFileRequired, model.ErrCodeInvalidFileType:
		return http.StatusBadRequest
	case model.ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
