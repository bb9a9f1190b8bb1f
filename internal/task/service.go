// Package task はタスク管理のドメインロジックを提供する。
package task

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/umair/taskvault/internal/model"
	"github.com/umair/taskvault/internal/repository"
	"github.com/umair/taskvault/internal/security"
)

// Service はタスクCRUDのサービス層。
// すべての操作は呼び出し元の認証済みユーザーIDでスコープされる。
type Service struct {
	taskRepo  repository.TaskRepository
	sanitizer security.TextSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(taskRepo repository.TaskRepository, sanitizer security.TextSanitizerService) *Service {
	return &Service{
		taskRepo:  taskRepo,
		sanitizer: sanitizer,
	}
}

// List は指定ユーザーのタスクを新しい順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Task, error) {
	tasks, err := s.taskRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Create はタスクを新規作成する。本文は保存前にサニタイズする。
func (s *Service) Create(ctx context.Context, userID, text string) (*model.Task, error) {
	text = s.sanitizer.Sanitize(text)
	if text == "" {
		return nil, model.NewValidationError("text は必須です")
	}

	t := &model.Task{
		ID:     uuid.NewString(),
		UserID: userID,
		Text:   text,
	}
	if err := s.taskRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return t, nil
}

// Update は (taskID, userID) で特定されるタスクの本文を更新する。
// 存在しない場合と他ユーザーの所有である場合は、同一のTASK_NOT_FOUNDエラーを返す
// （他ユーザーの行の存在を漏らさないための意図的な仕様）。
func (s *Service) Update(ctx context.Context, userID, taskID, text string) (*model.Task, error) {
	text = s.sanitizer.Sanitize(text)
	if text == "" {
		return nil, model.NewValidationError("text は必須です")
	}

	t, err := s.taskRepo.Update(ctx, taskID, userID, text)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if t == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	return t, nil
}

// Delete は (taskID, userID) で特定されるタスクを削除する。
// 存在しない場合と他ユーザーの所有である場合は、同一のTASK_NOT_FOUNDエラーを返す。
// 削除済みIDの再削除もTASK_NOT_FOUNDになる（冪等）。
func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	deleted, err := s.taskRepo.Delete(ctx, taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if !deleted {
		return model.NewTaskNotFoundError(taskID)
	}

	return nil
}
