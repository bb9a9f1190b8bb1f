// Package upload はファイルアップロードのドメインロジックを提供する。
package upload

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// アップロード先のフォルダ名。
const (
	taskPDFFolder    = "task-pdfs"
	profilePicFolder = "profile-pics"
)

// newObjectKey はランダムなオブジェクトキーを生成する。
// 形式: <folder>/<uuid>.<ext>
// 同名ファイルの衝突と、ファイル名に含まれる不正文字の混入を避ける。
func newObjectKey(folder, filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%s.%s", folder, uuid.NewString(), ext)
}
