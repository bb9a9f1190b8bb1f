package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/umair/taskvault/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// 読み書きはすべて所有者IDでスコープし、単一ステートメントの行アトミシティに依存する。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// ListByUserID は指定ユーザーのタスクを作成日時の降順で返す。
func (r *PostgresTaskRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, text, created_at, updated_at
		 FROM tasks WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*model.Task{}
	for rows.Next() {
		task := &model.Task{}
		if err := rows.Scan(&task.ID, &task.UserID, &task.Text, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// Create はタスクを新規作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, text, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		task.ID, task.UserID, task.Text, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// Update は (id, userID) で特定されるタスクの本文を更新する。
// 該当行がない場合（存在しない、または他ユーザーの所有）はnilを返す。
func (r *PostgresTaskRepo) Update(ctx context.Context, id, userID, text string) (*model.Task, error) {
	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE tasks SET text = $1, updated_at = now()
		 WHERE id = $2 AND user_id = $3
		 RETURNING id, user_id, text, created_at, updated_at`,
		text, id, userID,
	).Scan(&task.ID, &task.UserID, &task.Text, &task.CreatedAt, &task.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return task, nil
}

// Delete は (id, userID) で特定されるタスクを削除する。
// 削除された場合はtrueを返す。該当行がない場合はfalseを返す。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
