package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/medverify/internal/model"
)

// PostgresSessionRepository はSessionRepositoryのPostgreSQL実装。
// サインイン時点のプロフィールスナップショットをセッション行に保持する。
type PostgresSessionRepository struct {
	db *sql.DB
}

// NewPostgresSessionRepository はPostgresSessionRepositoryを作成する。
func NewPostgresSessionRepository(db *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, email, first_name, last_name, avatar_url, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.Identity.ID,
		session.Identity.Email,
		session.Identity.FirstName,
		session.Identity.LastName,
		session.Identity.AvatarURL,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れまたは未存在の場合はnilを返す。
func (r *PostgresSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	query := `
		SELECT id, user_id, email, first_name, last_name, avatar_url, expires_at, created_at
		FROM sessions
		WHERE id = $1 AND expires_at > $2`

	var session model.Session
	err := r.db.QueryRowContext(ctx, query, id, time.Now()).Scan(
		&session.ID,
		&session.Identity.ID,
		&session.Identity.Email,
		&session.Identity.FirstName,
		&session.Identity.LastName,
		&session.Identity.AvatarURL,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepository) DeleteByID(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *PostgresSessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM sessions WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete sessions by user: %w", err)
	}
	return nil
}

// SessionRepositoryインターフェースの実装を保証
var _ SessionRepository = (*PostgresSessionRepository)(nil)
