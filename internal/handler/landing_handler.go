package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/medverify/internal/model"
)

// LandingHandler は未認証訪問者向けのランディングページペイロードを返すハンドラー。
// 認証不要の静的コンテンツのため、サービス層への依存を持たない。
type LandingHandler struct{}

// NewLandingHandler はLandingHandlerを生成する。
func NewLandingHandler() *LandingHandler {
	return &LandingHandler{}
}

// landingFeature はランディングページの機能紹介カード。
type landingFeature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// roleOption は役割選択カード。
type roleOption struct {
	Role        string `json:"role"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// landingResponse は GET /api/landing のレスポンス。
type landingResponse struct {
	Title       string           `json:"title"`
	Subtitle    string           `json:"subtitle"`
	Features    []landingFeature `json:"features"`
	RoleOptions []roleOption     `json:"role_options"`
}

// Landing はランディングページのマーケティングペイロードを返す。
// GET /api/landing
func (h *LandingHandler) Landing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(landingResponse{
		Title:    "Secure Prescription Verification System",
		Subtitle: "Ensuring safe and verified medication dispensing for healthcare professionals",
		Features: []landingFeature{
			{
				Title:       "Secure Verification",
				Description: "Code-based prescription verification system ensuring medication safety",
			},
			{
				Title:       "For Healthcare Professionals",
				Description: "Dedicated dashboards for doctors and pharmacists",
			},
			{
				Title:       "Easy to Use",
				Description: "Intuitive interface for quick and efficient prescription management",
			},
		},
		RoleOptions: []roleOption{
			{
				Role:        string(model.RoleDoctor),
				Label:       "Doctor",
				Description: "Create and manage prescriptions for your patients",
			},
			{
				Role:        string(model.RolePharmacist),
				Label:       "Pharmacist",
				Description: "Verify and dispense prescriptions safely",
			},
		},
	})
}
