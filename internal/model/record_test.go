package model

import (
	"strings"
	"testing"
)

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleDoctor, true},
		{RolePharmacist, true},
		{Role(""), false},
		{Role("nurse"), false},
		{Role("Doctor"), false},
	}

	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestRole_DashboardPath(t *testing.T) {
	if got := RoleDoctor.DashboardPath(); got != "/doctordash" {
		t.Errorf("doctor dashboard path = %q, want %q", got, "/doctordash")
	}
	if got := RolePharmacist.DashboardPath(); got != "/pharmacistdashboard" {
		t.Errorf("pharmacist dashboard path = %q, want %q", got, "/pharmacistdashboard")
	}
}

func TestUserRecord_HasRole(t *testing.T) {
	var nilRec *UserRecord
	if nilRec.HasRole() {
		t.Error("nil record should not have a role")
	}

	rec := &UserRecord{UserID: "u1"}
	if rec.HasRole() {
		t.Error("record without role should not have a role")
	}

	doctor := RoleDoctor
	rec.Role = &doctor
	if !rec.HasRole() {
		t.Error("record with role should have a role")
	}
}

func TestNewRoleConflictError_NamesBothRoles(t *testing.T) {
	err := NewRoleConflictError(RoleDoctor, RolePharmacist)

	if err.Code != ErrCodeRoleConflict {
		t.Errorf("code = %q, want %q", err.Code, ErrCodeRoleConflict)
	}
	// メッセージには既存役割と要求役割の両方が含まれること
	if !strings.Contains(err.Message, RoleDoctor.Label()) {
		t.Errorf("message %q should contain %q", err.Message, RoleDoctor.Label())
	}
	if !strings.Contains(err.Message, RolePharmacist.Label()) {
		t.Errorf("message %q should contain %q", err.Message, RolePharmacist.Label())
	}
}

func TestIdentity_FullName(t *testing.T) {
	id := Identity{FirstName: "Hanako", LastName: "Yamada"}
	if got := id.FullName(); got != "Hanako Yamada" {
		t.Errorf("FullName() = %q, want %q", got, "Hanako Yamada")
	}

	id.LastName = ""
	if got := id.FullName(); got != "Hanako" {
		t.Errorf("FullName() without last name = %q, want %q", got, "Hanako")
	}
}
