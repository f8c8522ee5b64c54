// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, role, prescription, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeRoleConflict         = "ROLE_CONFLICT"
	ErrCodeStoreUnavailable     = "STORE_UNAVAILABLE"
	ErrCodeInvalidRole          = "INVALID_ROLE"
	ErrCodeRoleRequired         = "ROLE_REQUIRED"
	ErrCodePrescriptionNotFound = "PRESCRIPTION_NOT_FOUND"
	ErrCodeAlreadyDispensed     = "ALREADY_DISPENSED"
	ErrCodeInvalidPrescription  = "INVALID_PRESCRIPTION"
)

// NewRoleConflictError は役割競合エラーを生成する。
// 既存の役割と要求された役割の両方をユーザー向けメッセージに含める。
func NewRoleConflictError(existing, requested Role) *APIError {
	return &APIError{
		Code:     ErrCodeRoleConflict,
		Message:  fmt.Sprintf("このメールアドレスは既に%sとして登録されています。%sとしては利用できません。", existing.Label(), requested.Label()),
		Category: "role",
		Action:   fmt.Sprintf("%sとして利用する場合は、別のアカウントでサインインしてください。", requested.Label()),
	}
}

// NewStoreUnavailableError はRecordStoreへの読み書き失敗エラーを生成する。
// ネットワークやバックエンド起因の一時的エラーとして扱い、詳細はログのみに記録する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "役割情報の更新中にエラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidRoleError は未定義の役割が指定された場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("無効な役割です: %s", role),
		Category: "validation",
		Action:   "doctor または pharmacist のいずれかを指定してください。",
	}
}

// NewRoleRequiredError は必要な役割がバインドされていない場合のエラーを生成する。
func NewRoleRequiredError(required Role) *APIError {
	return &APIError{
		Code:     ErrCodeRoleRequired,
		Message:  fmt.Sprintf("この操作には%sの役割が必要です。", required.Label()),
		Category: "role",
		Action:   "トップページで役割を選択してください。",
	}
}

// NewPrescriptionNotFoundError は処方箋が見つからない場合のエラーを生成する。
func NewPrescriptionNotFoundError(code string) *APIError {
	return &APIError{
		Code:     ErrCodePrescriptionNotFound,
		Message:  fmt.Sprintf("指定された処方箋が見つかりません: %s", code),
		Category: "prescription",
		Action:   "検証コードを確認してください。",
	}
}

// NewAlreadyDispensedError は調剤済み処方箋の再調剤エラーを生成する。
func NewAlreadyDispensedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyDispensed,
		Message:  "この処方箋は既に調剤済みです。",
		Category: "prescription",
		Action:   "処方箋の状態を医師に確認してください。",
	}
}

// NewInvalidPrescriptionError は処方箋の入力内容が不正な場合のエラーを生成する。
func NewInvalidPrescriptionError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPrescription,
		Message:  fmt.Sprintf("処方箋の内容が不正です: %s", reason),
		Category: "validation",
		Action:   "患者名・薬剤名・用量を入力してください。",
	}
}
