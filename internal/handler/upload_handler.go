package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/umair/taskvault/internal/middleware"
	"github.com/umair/taskvault/internal/model"
)

// マルチパートフィールド名。フロントエンドとの契約。
const (
	pdfFieldName        = "pdf"
	profilePicFieldName = "profilePic"
)

// UploadServiceInterface はアップロードハンドラーが必要とするサービスインターフェース。
type UploadServiceInterface interface {
	// UploadTaskPDF はタスクPDFをアップロードし、署名付きURLを返す。
	UploadTaskPDF(ctx context.Context, userID, filename, contentType string, body io.Reader) (string, error)
	// UploadProfilePic はプロフィール画像をアップロードし、公開URLを返す。
	UploadProfilePic(ctx context.Context, userID, filename, contentType string, body io.Reader) (string, error)
}

// UploadRecorder はアップロードメトリクスの記録インターフェース。
type UploadRecorder interface {
	RecordUpload(kind string, bytes int64)
}

// UploadHandler はファイルアップロードのHTTPハンドラー。
type UploadHandler struct {
	service UploadServiceInterface
	metrics UploadRecorder
	maxSize int64 // リクエストボディの上限（バイト）
}

// NewUploadHandler はUploadHandlerを生成する。
func NewUploadHandler(service UploadServiceInterface, metrics UploadRecorder, maxSize int64) *UploadHandler {
	return &UploadHandler{
		service: service,
		metrics: metrics,
		maxSize: maxSize,
	}
}

// UploadTaskPDF はタスクPDFをアップロードする。
// POST /api/upload-task-pdf （multipart/form-data、フィールド名 "pdf"）
func (h *UploadHandler) UploadTaskPDF(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	file, header, ok := h.extractFile(w, r, pdfFieldName)
	if !ok {
		return
	}
	defer file.Close()

	url, err := h.service.UploadTaskPDF(r.Context(), userID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordUpload("task_pdf", header.Size)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"pdfUrl": url})
}

// UploadProfilePic はプロフィール画像をアップロードする。
// POST /api/upload-profile-pic （multipart/form-data、フィールド名 "profilePic"）
func (h *UploadHandler) UploadProfilePic(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	file, header, ok := h.extractFile(w, r, profilePicFieldName)
	if !ok {
		return
	}
	defer file.Close()

	url, err := h.service.UploadProfilePic(r.Context(), userID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordUpload("profile_pic", header.Size)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"profilePicUrl": url})
}

// extractFile はマルチパートフォームから指定フィールドのファイルを取り出す。
// ボディサイズの上限を適用し、エラー時はレスポンスを書き込んでfalseを返す。
func (h *UploadHandler) extractFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize)

	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewFileTooLargeError(h.maxSize))
			return nil, nil, false
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("マルチパートフォームを解析できません"))
		return nil, nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewFileRequiredError(field))
		return nil, nil, false
	}

	return file, header, true
}
