package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/medverify/internal/middleware"
	"github.com/hitoshi/medverify/internal/model"
)

// DashboardHandler は役割別ダッシュボードのHTTPハンドラー。
// ルーティング側でRequireRoleミドルウェアにより役割が保証される。
type DashboardHandler struct {
	prescriptions PrescriptionServiceInterface
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(prescriptions PrescriptionServiceInterface) *DashboardHandler {
	return &DashboardHandler{prescriptions: prescriptions}
}

// doctorDashboardResponse は医師ダッシュボードのサマリー。
type doctorDashboardResponse struct {
	Role           string                 `json:"role"`
	IssuedCount    int                    `json:"issued_count"`
	DispensedCount int                    `json:"dispensed_count"`
	Prescriptions  []prescriptionResponse `json:"prescriptions"`
}

// Doctor は医師ダッシュボードのサマリーを返す。
// GET /api/dashboard/doctor
func (h *DashboardHandler) Doctor(w http.ResponseWriter, r *http.Request) {
	doctorID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	prescriptions, err := h.prescriptions.ListByDoctor(r.Context(), doctorID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := doctorDashboardResponse{
		Role:          string(model.RoleDoctor),
		Prescriptions: make([]prescriptionResponse, 0, len(prescriptions)),
	}
	for _, p := range prescriptions {
		resp.IssuedCount++
		if p.Status == model.PrescriptionStatusDispensed {
			resp.DispensedCount++
		}
		resp.Prescriptions = append(resp.Prescriptions, toPrescriptionResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// pharmacistDashboardResponse は薬剤師ダッシュボードのサマリー。
type pharmacistDashboardResponse struct {
	Role       string `json:"role"`
	VerifyPath string `json:"verify_path"`
	Message    string `json:"message"`
}

// Pharmacist は薬剤師ダッシュボードのサマリーを返す。
// GET /api/dashboard/pharmacist
func (h *DashboardHandler) Pharmacist(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pharmacistDashboardResponse{
		Role:       string(model.RolePharmacist),
		VerifyPath: "/api/prescriptions/verify/{code}",
		Message:    "処方箋の検証コードを入力して照会してください。",
	})
}
