package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/medverify/internal/middleware"
	"github.com/hitoshi/medverify/internal/model"
)

// mockSessionFinder はmiddleware.SessionFinderのモック実装。
type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, sessionID string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, sessionID string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, sessionID)
	}
	return nil, nil
}

// mockRoleFinder はmiddleware.RoleFinderのモック実装。
type mockRoleFinder struct {
	findByUserIDFn func(ctx context.Context, userID string) (*model.UserRecord, error)
}

func (m *mockRoleFinder) FindByUserID(ctx context.Context, userID string) (*model.UserRecord, error) {
	if m.findByUserIDFn != nil {
		return m.findByUserIDFn(ctx, userID)
	}
	return nil, nil
}

// newTestRouter は全依存をモックで埋めたルーターとRateLimiterのクリーンアップ関数を返す。
func newTestRouter(t *testing.T, sessionFinder middleware.SessionFinder, roleFinder middleware.RoleFinder) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		SessionFinder:       sessionFinder,
		RoleFinder:          roleFinder,
		CORSAllowedOrigin:   "http://localhost:3000",
		RateLimiter:         rl,
		AuthService:         &mockAuthService{},
		AuthConfig:          testAuthConfig(),
		RoleBinder:          &mockRoleBinder{},
		SessionResolver:     &mockSessionResolver{},
		PrescriptionService: &mockPrescriptionService{},
		AvatarFetcher:       &mockAvatarFetcher{},
	})
}

func validSession() *model.Session {
	return &model.Session{
		ID:        "session-abc",
		Identity:  testHandlerIdentity(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, &mockSessionFinder{}, &mockRoleFinder{})

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRouter_Landing_NoAuthRequired(t *testing.T) {
	router := newTestRouter(t, &mockSessionFinder{}, &mockRoleFinder{})

	r := httptest.NewRequest(http.MethodGet, "/api/landing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRouter_Me_RequiresSession(t *testing.T) {
	router := newTestRouter(t, &mockSessionFinder{}, &mockRoleFinder{})

	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRouter_Me_WithValidSession(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			if sessionID != "session-abc" {
				t.Errorf("sessionID = %s", sessionID)
			}
			return validSession(), nil
		},
	}
	router := newTestRouter(t, finder, &mockRoleFinder{})

	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	r.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRouter_DoctorDashboard_RoleGated(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return validSession(), nil
		},
	}
	pharmacist := model.RolePharmacist
	roleFinder := &mockRoleFinder{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.UserRecord, error) {
			return &model.UserRecord{UserID: userID, Role: &pharmacist}, nil
		},
	}
	router := newTestRouter(t, finder, roleFinder)

	// 薬剤師レコードでは医師ダッシュボードに入れない
	r := httptest.NewRequest(http.MethodGet, "/api/dashboard/doctor", nil)
	r.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestRouter_DoctorDashboard_AllowsDoctor(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return validSession(), nil
		},
	}
	doctor := model.RoleDoctor
	roleFinder := &mockRoleFinder{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.UserRecord, error) {
			return &model.UserRecord{UserID: userID, Role: &doctor}, nil
		},
	}
	router := newTestRouter(t, finder, roleFinder)

	r := httptest.NewRequest(http.MethodGet, "/api/dashboard/doctor", nil)
	r.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRouter_BindRole_RequiresCSRFToken(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return validSession(), nil
		},
	}
	router := newTestRouter(t, finder, &mockRoleFinder{})

	// CSRFトークンなしのPOSTは拒否される
	r := httptest.NewRequest(http.MethodPost, "/api/role", bytes.NewReader([]byte(`{"role":"doctor"}`)))
	r.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestRouter_BindRole_WithCSRFToken(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return validSession(), nil
		},
	}
	router := newTestRouter(t, finder, &mockRoleFinder{})

	token := "a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8"
	r := httptest.NewRequest(http.MethodPost, "/api/role", bytes.NewReader([]byte(`{"role":"doctor"}`)))
	r.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	r.AddCookie(&http.Cookie{Name: "csrf_token", Value: token})
	r.Header.Set("X-CSRF-Token", token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRouter_SecurityHeaders_Applied(t *testing.T) {
	router := newTestRouter(t, &mockSessionFinder{}, &mockRoleFinder{})

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %s, want nosniff", got)
	}
}
