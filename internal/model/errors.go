// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, task, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeFileRequired       = "FILE_REQUIRED"
	ErrCodeInvalidFileType    = "INVALID_FILE_TYPE"
	ErrCodeFileTooLarge       = "FILE_TOO_LARGE"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレス誤りとパスワード誤りを区別しない（列挙攻撃対策）。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に使用されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
// 「存在しない」と「他ユーザーの所有」は意図的に区別しない。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "task",
		Action:   "タスクIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewFileRequiredError はファイル未添付エラーを生成する。
func NewFileRequiredError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeFileRequired,
		Message:  fmt.Sprintf("ファイルが添付されていません: %s", field),
		Category: "validation",
		Action:   "ファイルを選択してからアップロードしてください。",
	}
}

// NewInvalidFileTypeError はファイル種別不正エラーを生成する。
func NewInvalidFileTypeError(expected string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFileType,
		Message:  fmt.Sprintf("アップロードできるのは%sのみです。", expected),
		Category: "validation",
		Action:   "ファイル形式を確認してください。",
	}
}

// NewFileTooLargeError はファイルサイズ超過エラーを生成する。
func NewFileTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeFileTooLarge,
		Message:  fmt.Sprintf("ファイルサイズが上限（%dバイト）を超えています。", maxBytes),
		Category: "validation",
		Action:   "サイズの小さいファイルをアップロードしてください。",
	}
}
