// Package model はドメインモデルを定義する。
package model

import "time"

// Identity は外部IDプロバイダーが発行する認証済みユーザーの記述子を表す。
// プロバイダー側が管理する読み取り専用の情報であり、本システムは変更しない。
type Identity struct {
	ID        string // プロバイダーが割り当てる安定したユーザーID
	Email     string
	FirstName string
	LastName  string // 省略可
	AvatarURL string // 省略可
}

// FullName は表示用のフルネームを返す。姓が未設定の場合は名のみを返す。
func (i Identity) FullName() string {
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// Session はユーザーのログインセッションを表す。
// サインイン時点のIdentityスナップショットを保持し、
// プロバイダーの最新プロフィールで毎回上書きされる（last-write-wins）。
type Session struct {
	ID        string
	Identity  Identity
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionState は認証済みページ入場時のセッション状態を表す。
// Identityのプロフィール項目は常にプロバイダー由来の最新値、
// Roleのみが役割バインディングの対象となる。
// バインド競合はHTTPレスポンス側のAPIErrorで伝える。
type SessionState struct {
	Identity      Identity
	Role          Role // 未バインドの場合は空
	RoleFromCache bool // RecordStore読み取り失敗時にローカルキャッシュから補完した場合true（表示専用）
}
