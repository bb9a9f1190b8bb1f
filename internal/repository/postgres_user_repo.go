package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/umair/taskvault/internal/model"
)

// uniqueViolationCode はPostgreSQLの一意制約違反エラーコード。
const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Create はユーザーを新規作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, profile_pic_url, pdf_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Name, user.Email, user.PasswordHash,
		user.ProfilePicURL, user.PDFKey, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, profile_pic_url, pdf_key, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.ProfilePicURL, &user.PDFKey, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, profile_pic_url, pdf_key, created_at, updated_at
		 FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.ProfilePicURL, &user.PDFKey, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// UpdateProfile は名前とメールアドレスを更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id, name, email string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $1, email = $2, updated_at = now() WHERE id = $3`,
		name, email, id,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// UpdateProfilePicURL はプロフィール画像URLを更新する。
func (r *PostgresUserRepo) UpdateProfilePicURL(ctx context.Context, id, url string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET profile_pic_url = $1, updated_at = now() WHERE id = $2`,
		url, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile pic url: %w", err)
	}
	return nil
}

// UpdatePDFKey はタスクPDFのオブジェクトキーを更新する。
func (r *PostgresUserRepo) UpdatePDFKey(ctx context.Context, id, key string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET pdf_key = $1, updated_at = now() WHERE id = $2`,
		key, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update pdf key: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
