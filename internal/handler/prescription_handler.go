package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/medverify/internal/middleware"
	"github.com/hitoshi/medverify/internal/model"
	"github.com/hitoshi/medverify/internal/prescription"
)

// PrescriptionServiceInterface は処方箋ハンドラーが必要とするサービスインターフェース。
type PrescriptionServiceInterface interface {
	// Issue は医師名義で処方箋を発行する。
	Issue(ctx context.Context, doctorID string, input prescription.IssueInput) (*model.Prescription, error)
	// ListByDoctor は医師が発行した処方箋の一覧を返す。
	ListByDoctor(ctx context.Context, doctorID string) ([]*model.Prescription, error)
	// VerifyByCode は検証コードで処方箋を照会する。
	VerifyByCode(ctx context.Context, code string) (*model.Prescription, error)
	// Dispense は処方箋を調剤済みにする。調剤は一度のみ。
	Dispense(ctx context.Context, prescriptionID, pharmacistID string) (*model.Prescription, error)
}

// PrescriptionHandler は処方箋管理のHTTPハンドラー。
type PrescriptionHandler struct {
	service PrescriptionServiceInterface
}

// NewPrescriptionHandler はPrescriptionHandlerを生成する。
func NewPrescriptionHandler(service PrescriptionServiceInterface) *PrescriptionHandler {
	return &PrescriptionHandler{service: service}
}

// issuePrescriptionRequest は処方箋発行リクエストのボディ。
type issuePrescriptionRequest struct {
	PatientName  string `json:"patient_name"`
	Medication   string `json:"medication"`
	Dosage       string `json:"dosage"`
	Instructions string `json:"instructions"`
}

// prescriptionResponse は処方箋情報のAPIレスポンス。
type prescriptionResponse struct {
	ID           string     `json:"id"`
	PatientName  string     `json:"patient_name"`
	Medication   string     `json:"medication"`
	Dosage       string     `json:"dosage"`
	Instructions string     `json:"instructions"`
	Code         string     `json:"code"`
	Status       string     `json:"status"`
	IssuedAt     time.Time  `json:"issued_at"`
	DispensedAt  *time.Time `json:"dispensed_at,omitempty"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// Issue は処方箋発行を処理する。
// POST /api/prescriptions
func (h *PrescriptionHandler) Issue(w http.ResponseWriter, r *http.Request) {
	doctorID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req issuePrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	p, err := h.service.Issue(r.Context(), doctorID, prescription.IssueInput{
		PatientName:  req.PatientName,
		Medication:   req.Medication,
		Dosage:       req.Dosage,
		Instructions: req.Instructions,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPrescriptionResponse(p))
}

// List は医師自身が発行した処方箋の一覧を返す。
// GET /api/prescriptions
func (h *PrescriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	doctorID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	prescriptions, err := h.service.ListByDoctor(r.Context(), doctorID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]prescriptionResponse, 0, len(prescriptions))
	for _, p := range prescriptions {
		responses = append(responses, toPrescriptionResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"prescriptions": responses,
	})
}

// Verify は検証コードで処方箋を照会する。
// GET /api/prescriptions/verify/{code}
func (h *PrescriptionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	p, err := h.service.VerifyByCode(r.Context(), code)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPrescriptionResponse(p))
}

// Dispense は処方箋を調剤済みにする。
// POST /api/prescriptions/{id}/dispense
func (h *PrescriptionHandler) Dispense(w http.ResponseWriter, r *http.Request) {
	pharmacistID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	prescriptionID := chi.URLParam(r, "id")

	p, err := h.service.Dispense(r.Context(), prescriptionID, pharmacistID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPrescriptionResponse(p))
}

// toPrescriptionResponse はmodel.PrescriptionをAPIレスポンス形式に変換する。
func toPrescriptionResponse(p *model.Prescription) prescriptionResponse {
	return prescriptionResponse{
		ID:           p.ID,
		PatientName:  p.PatientName,
		Medication:   p.Medication,
		Dosage:       p.Dosage,
		Instructions: p.Instructions,
		Code:         p.Code,
		Status:       string(p.Status),
		IssuedAt:     p.IssuedAt,
		DispensedAt:  p.DispensedAt,
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeUnauthorizedResponse は認証されていないリクエストへの401レスポンスを書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeRoleConflict, model.ErrCodeAlreadyDispensed:
		return http.StatusConflict
	case model.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case model.ErrCodeInvalidRole, model.ErrCodeInvalidPrescription:
		return http.StatusBadRequest
	case model.ErrCodePrescriptionNotFound:
		return http.StatusNotFound
	case model.ErrCodeRoleRequired:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
