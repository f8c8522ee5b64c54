package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/medverify/internal/model"
)

// PostgresPrescriptionRepository はPrescriptionRepositoryのPostgreSQL実装。
type PostgresPrescriptionRepository struct {
	db *sql.DB
}

// NewPostgresPrescriptionRepository はPostgresPrescriptionRepositoryを作成する。
func NewPostgresPrescriptionRepository(db *sql.DB) *PostgresPrescriptionRepository {
	return &PostgresPrescriptionRepository{db: db}
}

// Create は処方箋を作成する。
func (r *PostgresPrescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (id, doctor_id, patient_name, medication, dosage, instructions, code, status, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.DoctorID, p.PatientName, p.Medication, p.Dosage, p.Instructions, p.Code, p.Status, p.IssuedAt)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}
	return nil
}

// FindByID は指定IDの処方箋を取得する。
func (r *PostgresPrescriptionRepository) FindByID(ctx context.Context, id string) (*model.Prescription, error) {
	query := selectPrescription + ` WHERE id = $1`
	p, err := scanPrescription(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find prescription by id: %w", err)
	}
	return p, nil
}

// FindByCode は検証コードで処方箋を検索する。
func (r *PostgresPrescriptionRepository) FindByCode(ctx context.Context, code string) (*model.Prescription, error) {
	query := selectPrescription + ` WHERE code = $1`
	p, err := scanPrescription(r.db.QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find prescription by code: %w", err)
	}
	return p, nil
}

// ListByDoctorID は医師が発行した処方箋一覧をissued_at降順で返す。
func (r *PostgresPrescriptionRepository) ListByDoctorID(ctx context.Context, doctorID string, limit int) ([]*model.Prescription, error) {
	query := selectPrescription + ` WHERE doctor_id = $1 ORDER BY issued_at DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, doctorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	defer rows.Close()

	var prescriptions []*model.Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prescription: %w", err)
		}
		prescriptions = append(prescriptions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prescriptions: %w", err)
	}
	return prescriptions, nil
}

// MarkDispensed は処方箋を調剤済みに更新する。
// WHERE句でstatusを確認するため、既に調剤済みの場合は行が更新されずfalseを返す。
func (r *PostgresPrescriptionRepository) MarkDispensed(ctx context.Context, id, pharmacistID string) (bool, error) {
	query := `
		UPDATE prescriptions
		SET status = $1, dispensed_at = $2, dispensed_by = $3
		WHERE id = $4 AND status = $5`

	result, err := r.db.ExecContext(ctx, query,
		model.PrescriptionStatusDispensed, time.Now(), pharmacistID, id, model.PrescriptionStatusIssued)
	if err != nil {
		return false, fmt.Errorf("failed to mark prescription dispensed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

const selectPrescription = `
	SELECT id, doctor_id, patient_name, medication, dosage, instructions, code, status, issued_at, dispensed_at, dispensed_by
	FROM prescriptions`

func scanPrescription(row rowScanner) (*model.Prescription, error) {
	var p model.Prescription
	var dispensedAt sql.NullTime
	var dispensedBy sql.NullString

	err := row.Scan(&p.ID, &p.DoctorID, &p.PatientName, &p.Medication, &p.Dosage,
		&p.Instructions, &p.Code, &p.Status, &p.IssuedAt, &dispensedAt, &dispensedBy)
	if err != nil {
		return nil, err
	}

	if dispensedAt.Valid {
		t := dispensedAt.Time
		p.DispensedAt = &t
	}
	p.DispensedBy = dispensedBy.String
	return &p, nil
}

// PrescriptionRepositoryインターフェースの実装を保証
var _ PrescriptionRepository = (*PostgresPrescriptionRepository)(nil)
