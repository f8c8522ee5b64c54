package model

import "time"

// Role はユーザーに割り当てられる役割を表す。
type Role string

const (
	// RoleDoctor は処方箋を発行する医師の役割。
	RoleDoctor Role = "doctor"
	// RolePharmacist は処方箋を検証・調剤する薬剤師の役割。
	RolePharmacist Role = "pharmacist"
)

// Valid は役割が定義済みの値かどうかを判定する。
func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePharmacist
}

// Label は役割のユーザー向け表示名を返す。
func (r Role) Label() string {
	switch r {
	case RoleDoctor:
		return "医師"
	case RolePharmacist:
		return "薬剤師"
	default:
		return string(r)
	}
}

// DashboardPath は役割ごとの固定ダッシュボードパスを返す。
func (r Role) DashboardPath() string {
	switch r {
	case RoleDoctor:
		return "/doctordash"
	case RolePharmacist:
		return "/pharmacistdashboard"
	default:
		return "/"
	}
}

// UserRecord はRecordStoreが管理する永続ユーザーレコードを表す。
// 主キーはUserID（== Identity.ID）。roleは一度バインドされたら不変であり、
// 同一役割の再バインド（冪等な再確認）のみ許可される。
type UserRecord struct {
	UserID      string
	Email       string
	Role        *Role // 未バインドの場合はnil
	FirstName   string
	LastName    string
	AvatarURL   string
	LastUpdated time.Time
}

// HasRole はレコードに役割がバインド済みかどうかを返す。
func (r *UserRecord) HasRole() bool {
	return r != nil && r.Role != nil && *r.Role != ""
}

// RecordPatch はRecordStoreへのマージ書き込みの部分レコードを表す。
// nilのフィールドは更新されず、既存の値が維持される（shallow merge）。
type RecordPatch struct {
	Email       *string
	Role        *Role
	FirstName   *string
	LastName    *string
	AvatarURL   *string
	LastUpdated time.Time
}
