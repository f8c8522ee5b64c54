package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLandingHandler_ReturnsMarketingPayload(t *testing.T) {
	h := NewLandingHandler()

	r := httptest.NewRequest(http.MethodGet, "/api/landing", nil)
	w := httptest.NewRecorder()
	h.Landing(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp landingResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Title == "" {
		t.Error("title should be set")
	}
	if len(resp.Features) != 3 {
		t.Errorf("features = %d, want 3", len(resp.Features))
	}
	if len(resp.RoleOptions) != 2 {
		t.Fatalf("role_options = %d, want 2", len(resp.RoleOptions))
	}
	if resp.RoleOptions[0].Role != "doctor" || resp.RoleOptions[1].Role != "pharmacist" {
		t.Errorf("unexpected role options: %+v", resp.RoleOptions)
	}
}
