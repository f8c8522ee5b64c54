// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/medverify/internal/model"
)

// RecordStore はユーザーレコードの永続化インターフェース。
// システムの真実の源（system of record）であり、ローカルキャッシュや
// セッション状態と食い違った場合は常にこちらを再読取して解決する。
type RecordStore interface {
	// FindByUserID は指定ユーザーIDのレコードを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserRecord, error)

	// FindByEmail は指定メールアドレスのレコード一覧をlast_updated昇順で返す。
	// 複数レコードが同一メールを持つ場合、先頭（最古）のレコードが役割判定で優先される。
	FindByEmail(ctx context.Context, email string) ([]*model.UserRecord, error)

	// MergeWrite はレコードを部分マージで書き込み、マージ後のレコードを返す。
	// patchのnilフィールドは更新されず、既存の値が維持される。
	// レコードが存在しない場合は新規作成される。
	MergeWrite(ctx context.Context, userID string, patch *model.RecordPatch) (*model.UserRecord, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// PrescriptionRepository は処方箋データの永続化インターフェース。
type PrescriptionRepository interface {
	// Create は処方箋を作成する。
	Create(ctx context.Context, p *model.Prescription) error

	// FindByID は指定IDの処方箋を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Prescription, error)

	// FindByCode は検証コードで処方箋を検索する。見つからない場合はnilを返す。
	FindByCode(ctx context.Context, code string) (*model.Prescription, error)

	// ListByDoctorID は医師が発行した処方箋一覧をissued_at降順で返す。
	ListByDoctorID(ctx context.Context, doctorID string, limit int) ([]*model.Prescription, error)

	// MarkDispensed は処方箋を調剤済みに更新する。
	// 既に調剤済みの場合は更新せずfalseを返す（1回限りの調剤を保証する）。
	MarkDispensed(ctx context.Context, id, pharmacistID string) (bool, error)
}
