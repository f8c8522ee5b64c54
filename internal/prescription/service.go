// Package prescription は処方箋の発行・検証・調剤のドメインロジックを提供する。
package prescription

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/medverify/internal/metrics"
	"github.com/hitoshi/medverify/internal/model"
	"github.com/hitoshi/medverify/internal/repository"
	"github.com/hitoshi/medverify/internal/security"
)

// defaultListLimit は医師の処方箋一覧のデフォルト件数。
const defaultListLimit = 50

// codeAlphabet は検証コードに使用する文字。紛らわしい文字（0, O, 1, I）を除く。
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// codeLength は検証コードの長さ（プレフィックスを除く）。
const codeLength = 10

// IssueInput は処方箋発行の入力。
type IssueInput struct {
	PatientName  string
	Medication   string
	Dosage       string
	Instructions string
}

// Service は処方箋のビジネスロジックを提供する。
type Service struct {
	repo      repository.PrescriptionRepository
	sanitizer security.ContentSanitizerService
	metrics   metrics.MetricsCollector
}

// NewService はServiceを生成する。collectorはnil可。
func NewService(repo repository.PrescriptionRepository, sanitizer security.ContentSanitizerService, collector metrics.MetricsCollector) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   collector,
	}
}

// Issue は医師による処方箋の発行を処理する。
// 服薬指示はサニタイズしてから保存する。検証コードは薬剤師に口頭や紙で
// 伝えられる前提で、紛らわしい文字を除いた短いコードを生成する。
func (s *Service) Issue(ctx context.Context, doctorID string, input IssueInput) (*model.Prescription, error) {
	if err := validateIssueInput(input); err != nil {
		return nil, err
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	p := &model.Prescription{
		ID:           uuid.New().String(),
		DoctorID:     doctorID,
		PatientName:  strings.TrimSpace(input.PatientName),
		Medication:   strings.TrimSpace(input.Medication),
		Dosage:       strings.TrimSpace(input.Dosage),
		Instructions: s.sanitizer.Sanitize(input.Instructions),
		Code:         code,
		Status:       model.PrescriptionStatusIssued,
		IssuedAt:     time.Now(),
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create prescription: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordPrescriptionIssued()
	}
	slog.Info("prescription issued",
		slog.String("prescription_id", p.ID),
		slog.String("doctor_id", doctorID),
	)
	return p, nil
}

// ListByDoctor は医師が発行した処方箋の一覧を返す。
func (s *Service) ListByDoctor(ctx context.Context, doctorID string) ([]*model.Prescription, error) {
	prescriptions, err := s.repo.ListByDoctorID(ctx, doctorID, defaultListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, nil
}

// VerifyByCode は検証コードで処方箋を照会する。薬剤師の検証画面で使用する。
func (s *Service) VerifyByCode(ctx context.Context, code string) (*model.Prescription, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, model.NewInvalidPrescriptionError("検証コードが指定されていません")
	}

	p, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to verify prescription: %w", err)
	}
	if p == nil {
		return nil, model.NewPrescriptionNotFoundError(code)
	}
	return p, nil
}

// Dispense は薬剤師による調剤を処理する。調剤は処方箋ごとに1回限りで、
// 2回目以降の要求は競合として拒否される。
func (s *Service) Dispense(ctx context.Context, prescriptionID, pharmacistID string) (*model.Prescription, error) {
	existing, err := s.repo.FindByID(ctx, prescriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find prescription: %w", err)
	}
	if existing == nil {
		return nil, model.NewPrescriptionNotFoundError(prescriptionID)
	}

	ok, err := s.repo.MarkDispensed(ctx, prescriptionID, pharmacistID)
	if err != nil {
		return nil, fmt.Errorf("failed to dispense prescription: %w", err)
	}
	if !ok {
		// 読み取りと更新の間に他の薬剤師が調剤した場合もここに入る
		return nil, model.NewAlreadyDispensedError()
	}

	dispensed, err := s.repo.FindByID(ctx, prescriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload prescription: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordPrescriptionDispensed()
	}
	slog.Info("prescription dispensed",
		slog.String("prescription_id", prescriptionID),
		slog.String("pharmacist_id", pharmacistID),
	)
	return dispensed, nil
}

// validateIssueInput は発行入力の必須項目を検証する。
func validateIssueInput(input IssueInput) error {
	if strings.TrimSpace(input.PatientName) == "" {
		return model.NewInvalidPrescriptionError("患者名は必須です")
	}
	if strings.TrimSpace(input.Medication) == "" {
		return model.NewInvalidPrescriptionError("薬剤名は必須です")
	}
	if strings.TrimSpace(input.Dosage) == "" {
		return model.NewInvalidPrescriptionError("用量は必須です")
	}
	return nil
}

// generateCode は暗号的に安全な検証コードを生成する。
func generateCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("RX-")
	for _, v := range b {
		sb.WriteByte(codeAlphabet[int(v)%len(codeAlphabet)])
	}
	return sb.String(), nil
}
