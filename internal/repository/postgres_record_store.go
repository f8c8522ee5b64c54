package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/medverify/internal/model"
)

// PostgresRecordStore はRecordStoreのPostgreSQL実装。
type PostgresRecordStore struct {
	db *sql.DB
}

// NewPostgresRecordStore はPostgresRecordStoreを作成する。
func NewPostgresRecordStore(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

// FindByUserID は指定ユーザーIDのレコードを取得する。
func (s *PostgresRecordStore) FindByUserID(ctx context.Context, userID string) (*model.UserRecord, error) {
	query := `
		SELECT user_id, email, role, first_name, last_name, avatar_url, last_updated
		FROM user_records
		WHERE user_id = $1`

	rec, err := scanUserRecord(s.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user record by id: %w", err)
	}
	return rec, nil
}

// FindByEmail は指定メールアドレスのレコード一覧をlast_updated昇順で返す。
func (s *PostgresRecordStore) FindByEmail(ctx context.Context, email string) ([]*model.UserRecord, error) {
	query := `
		SELECT user_id, email, role, first_name, last_name, avatar_url, last_updated
		FROM user_records
		WHERE email = $1
		ORDER BY last_updated ASC`

	rows, err := s.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user records by email: %w", err)
	}
	defer rows.Close()

	var records []*model.UserRecord
	for rows.Next() {
		rec, err := scanUserRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user records: %w", err)
	}
	return records, nil
}

// MergeWrite はレコードを部分マージで書き込み、マージ後のレコードを返す。
// 既存レコードがある場合、patchのnilフィールドはCOALESCEにより既存値が維持される。
// 新規レコードの場合、nilのプロフィールフィールドは空文字列として挿入される
// （roleのみNULL許容。姓やアバターを持たないアイデンティティの初回バインドを妨げない）。
func (s *PostgresRecordStore) MergeWrite(ctx context.Context, userID string, patch *model.RecordPatch) (*model.UserRecord, error) {
	query := `
		INSERT INTO user_records (user_id, email, role, first_name, last_name, avatar_url, last_updated)
		VALUES ($1, COALESCE($2, ''), $3, COALESCE($4, ''), COALESCE($5, ''), COALESCE($6, ''), $7)
		ON CONFLICT (user_id) DO UPDATE SET
			email = COALESCE($2, user_records.email),
			role = COALESCE($3, user_records.role),
			first_name = COALESCE($4, user_records.first_name),
			last_name = COALESCE($5, user_records.last_name),
			avatar_url = COALESCE($6, user_records.avatar_url),
			last_updated = $7
		RETURNING user_id, email, role, first_name, last_name, avatar_url, last_updated`

	rec, err := scanUserRecord(s.db.QueryRowContext(ctx, query,
		userID, patch.Email, patch.Role, patch.FirstName, patch.LastName, patch.AvatarURL, patch.LastUpdated))
	if err != nil {
		return nil, fmt.Errorf("failed to merge user record: %w", err)
	}
	return rec, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserRecord(row rowScanner) (*model.UserRecord, error) {
	var rec model.UserRecord
	var email, firstName, lastName, avatarURL sql.NullString
	var role sql.NullString

	err := row.Scan(&rec.UserID, &email, &role, &firstName, &lastName, &avatarURL, &rec.LastUpdated)
	if err != nil {
		return nil, err
	}

	rec.Email = email.String
	rec.FirstName = firstName.String
	rec.LastName = lastName.String
	rec.AvatarURL = avatarURL.String
	if role.Valid {
		r := model.Role(role.String)
		rec.Role = &r
	}
	return &rec, nil
}

// RecordStoreインターフェースの実装を保証
var _ RecordStore = (*PostgresRecordStore)(nil)
