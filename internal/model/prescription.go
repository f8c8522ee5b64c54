package model

import "time"

// PrescriptionStatus は処方箋の状態を表す。
type PrescriptionStatus string

const (
	// PrescriptionStatusIssued は発行済み（未調剤）の状態。
	PrescriptionStatusIssued PrescriptionStatus = "issued"
	// PrescriptionStatusDispensed は調剤済みの状態。
	PrescriptionStatusDispensed PrescriptionStatus = "dispensed"
)

// Prescription は医師が発行する処方箋を表す。
// Codeは薬剤師が検証時に入力する短い検証コードで、システム内で一意。
// 調剤は一度だけ実行でき、調剤済みの処方箋の再調剤は競合エラーとなる。
type Prescription struct {
	ID           string
	DoctorID     string // 発行した医師のUserID
	PatientName  string
	Medication   string
	Dosage       string
	Instructions string // サニタイズ済みHTML
	Code         string
	Status       PrescriptionStatus
	IssuedAt     time.Time
	DispensedAt  *time.Time
	DispensedBy  string // 調剤した薬剤師のUserID（未調剤の場合は空）
}
