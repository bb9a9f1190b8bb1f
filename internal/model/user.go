// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュであり、APIレスポンスには一切含めない。
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	ProfilePicURL string // プロフィール画像のS3 URL（未設定の場合は空文字）
	PDFKey        string // タスクPDFのS3オブジェクトキー（未設定の場合は空文字）
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
