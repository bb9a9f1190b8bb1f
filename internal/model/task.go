// Package model はドメインモデルを定義する。
package model

import "time"

// Task はユーザーが所有するタスクを表す。
// UserIDは作成時に確定し、以後変更されない。
type Task struct {
	ID        string
	UserID    string
	Text      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
