package rolebind

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/medverify/internal/model"
	"github.com/hitoshi/medverify/internal/repository"
)

// --- モック定義 ---

type mockRecordStore struct {
	findByUserIDFn func(ctx context.Context, userID string) (*model.UserRecord, error)
	findByEmailFn  func(ctx context.Context, email string) ([]*model.UserRecord, error)
	mergeWriteFn   func(ctx context.Context, userID string, patch *model.RecordPatch) (*model.UserRecord, error)

	mergeWriteCalls int
}

func (m *mockRecordStore) FindByUserID(ctx context.Context, userID string) (*model.UserRecord, error) {
	if m.findByUserIDFn != nil {
		return m.findByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockRecordStore) FindByEmail(ctx context.Context, email string) ([]*model.UserRecord, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockRecordStore) MergeWrite(ctx context.Context, userID string, patch *model.RecordPatch) (*model.UserRecord, error) {
	m.mergeWriteCalls++
	if m.mergeWriteFn != nil {
		return m.mergeWriteFn(ctx, userID, patch)
	}
	// デフォルトはパッチをそのまま反映したレコードを返す
	rec := &model.UserRecord{UserID: userID, LastUpdated: patch.LastUpdated}
	if patch.Email != nil {
		rec.Email = *patch.Email
	}
	if patch.Role != nil {
		rec.Role = patch.Role
	}
	if patch.FirstName != nil {
		rec.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		rec.LastName = *patch.LastName
	}
	if patch.AvatarURL != nil {
		rec.AvatarURL = *patch.AvatarURL
	}
	return rec, nil
}

type mockSlot struct {
	saved   *model.UserRecord
	loaded  *model.UserRecord
	cleared bool
}

func (m *mockSlot) Load() *model.UserRecord       { return m.loaded }
func (m *mockSlot) Save(rec *model.UserRecord)    { m.saved = rec }
func (m *mockSlot) Clear()                        { m.cleared = true }

var _ repository.RecordStore = (*mockRecordStore)(nil)

func rolePtr(r model.Role) *model.Role { return &r }

func testIdentity() model.Identity {
	return model.Identity{
		ID:        "u1",
		Email:     "a@b.com",
		FirstName: "太郎",
		LastName:  "山田",
		AvatarURL: "https://example.com/avatar.png",
	}
}

// --- Bind ---

// 既存レコードもメール一致もない場合、要求された役割が確定することを検証
func TestBind_FreshIdentity_Bound(t *testing.T) {
	store := &mockRecordStore{}
	slot := &mockSlot{}
	svc := NewService(store, nil)

	result := svc.Bind(context.Background(), slot, testIdentity(), model.RoleDoctor)

	if result.Status != StatusBound {
		t.Fatalf("Status = %q, want %q", result.Status, StatusBound)
	}
	if result.Role != model.RoleDoctor {
		t.Errorf("Role = %q, want %q", result.Role, model.RoleDoctor)
	}
	if result.Record == nil || result.Record.Role == nil || *result.Record.Role != model.RoleDoctor {
		t.Error("expected merged record with doctor role")
	}
	if slot.saved == nil {
		t.Error("expected cache to mirror the committed record")
	}
}

// 同一役割の再バインドが冪等であることを検証
func TestBind_SameRole_Idempotent(t *testing.T) {
	store := &mockRecordStore{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.UserRecord, error) {
			return &model.UserRecord{UserID: userID, Email: "a@b.com", Role: rolePtr(model.RoleDoctor)}, nil
		},
	}
	svc := NewService(store, nil)

	for i := 0; i < 2; i++ {
		result := svc.Bind(context.Background(), &mockSlot{}, testIdentity(), model.RoleDoctor)
		if result.Status != StatusBound {
			t.Fatalf("call %d: Status = %q, want %q", i+1, result.Status, StatusBound)
		}
		if result.Role != model.RoleDoctor {
			t.Errorf("call %d: Role = %q, want %q", i+1, result.Role, model.RoleDoctor)
		}
	}
}

// 役割未設定の既存レコードには役割を設定できることを検証
func TestBind_ExistingRecordWithoutRole_Bound(t *testing.T) {
	store := &mockRecordStore{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.UserRecord, error) {
			return &model.UserRecord{UserID: userID, Email: "a@b.com"}, nil
		},
	}
	svc := NewService(store, nil)

	result := svc.Bind(context.Background(), &mockSlot{}, testIdentity(), model.RolePharmacist)
	if result.Status != StatusBound {
		t.Fatalf("Status = %q, want %q", result.Status, StatusBound)
	}
}

// 自身のレコードの役割と異なる要求が競合になり、書き込みが行われないことを検証
func TestBind_OwnRecordConflict_NoWrite(t *testing.T) {
	store := &mockRecordStore{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.UserRecord, error) {
			return &model.UserRecord{UserID: userID, Role: rolePtr(model.RoleDoctor)}, nil
		},
	}
	slot := &mockSlot{}
	svc := NewService(store, nil)

	result := svc.Bind(context.Background(), slot, testIdentity(), model.RolePharmacist)

	if result.Status != StatusConflict {
		t.Fatalf("Status = %q, want %q", result.Status, StatusConflict)
	}
	if result.ExistingRole != model.RoleDoctor {
		t.Errorf("ExistingRole = %q, want %q", result.ExistingRole, model.RoleDoctor)
	}
	if store.mergeWriteCalls != 0 {
		t.Errorf("mergeWriteCalls = %d, want 0", store.mergeWriteCalls)
	}
	if slot.saved != nil {
		t.Error("cache must not be written on conflict")
	}
	// エラーメッセージが両方の役割名を含むこと
	if result.Err == nil {
		t.Fatal("expected user-facing error")
	}
	if !strings.Contains(result.Err.Message, model.RoleDoctor.Label()) ||
		!strings.Contains(result.Err.Message, model.RolePharmacist.Label()) {
		t.Errorf("conflict message %q should name both roles", result.Err.Message)
	}
}

// 同一メールの別アカウントが既に役割を持つ場合に競合になることを検証
func TestBind_EmailCollisionConflict(t *testing.T) {
	store := &mockRecordStore{
		findByEmailFn: func(ctx context.Context, email string) ([]*model.UserRecord, error) {
			return []*model.UserRecord{
				{UserID: "u2", Email: email, Role: rolePtr(model.RoleDoctor)},
			}, nil
		},
	}
	svc := NewService(store, nil)

	result := svc.Bind(context.Background(), &mockSlot{}, testIdentity(), model.RolePharmacist)

	if result.Status != StatusConflict {
		t.Fatalf("Status = %q, want %q", result.Status, StatusConflict)
	}
	if result.ExistingRole != model.RoleDoctor {
		t.Errorf("ExistingRole = %q, want %q", result.ExistingRole, model.RoleDoctor)
	}
	if store.mergeWriteCalls != 0 {
		t.Errorf("mergeWriteCalls = %d, want 0", store.mergeWriteCalls)
	}
}

// 同一メールの別アカウントと同じ役割の要求は許可されることを検証
func TestBind_EmailCollisionSameRole_Bound(t *testing.T) {
	store := &mockRecordStore{
		findByEmailFn: func(ctx context.Context, email string) ([]*model.UserRecord, error) {
			return []*model.UserRecord{
				{UserID: "u2", Email: email, Role: rolePtr(model.RoleDoctor)},
			}, nil
		},
	}
	svc := NewService(store, nil)

	result := svc.Bind(context.Background(), &mockSlot{}, testIdentity(), model.RoleDoctor)
	if result.Status != StatusBound {
		t.Fatalf("Status = %q, want %q", result.Status, StatusBound)
	}
}

// 複数レコードが同一メールを共有する場合、最古のレコードの役割が優先されることを検証
func TestBind_EmailCollision_EarliestRecordWins(t *testing.T) {
	store := &mockRecordStore{
		findByEmailFn: func(ctx context.Context, email string) ([]*model.UserRecord, error) {
			// FindByEmailはlast_updated昇順で返す契約
			return []*model.UserRecord{
				{UserID: "u-old", Email: email, Role: rolePtr(model.RoleDoctor), LastUpdated: time.Now().Add(-2 * time.Hour)},
				{UserID: "u-new", Email: email, Role: rolePtr(model.RolePharmacist), LastUpdated: time.Now()},
			}, nil
		},
	}
	svc := NewService(store, nil)

	result := svc.Bind(context.Background(), &mockSlot{}, testIdentity(), model.RolePharmacist)

	if result.Status != StatusConflict {
		t.Fatalf("Status = %q, want %q", result.Status, StatusConflict)
	}
	if result.ExistingRole != model.RoleDoctor {
		t.Errorf("ExistingRole = %q, want %q (earliest record's role)", result.ExistingRole, model.RoleDoctor)
	}
}

// 同一メール検索で自分自身のレコードは無視されることを検証
func TestBind_EmailQuery_SkipsOwnRecord(t *testing.T) {
	store := &mockRecordStore{
		findByEmailFn: func(ctx context.Context, email string) ([]*model.UserRecord, error) {
			return []*model.UserRecord{
				{UserID: "u1", Email: email, Role: rolePtr(model.RoleDoctor)},
			}, nil
		},
	}
	svc := NewService(store, nil)

	result := svc.Bind(context.Background(), &mockSlot{}, testIdentity(), model.RolePharmacist)
	if result.Status != StatusBound {
		t.Fatalf("Status = %q, want %q", result.Status, StatusBound)
	}
}

// ストア読み取り失敗がStoreUnavailableになり、キャッシュが変更されないことを検証
func TestBind_StoreReadFailure_NoLocalMutation(t *testing.T) {
	store := &mockRecordStore{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.UserRecord, error) {
			return nil, errors.New("connection refused")
		},
	}
	slot := &mockSlot{}
	svc := NewService(store, nil)

	result := svc.Bind(context.Background(), slot, testIdentity(), model.RoleDoctor)

	if result.Status != StatusStoreUnavailable {
		t.Fatalf("Status = %q, want %q", result.Status, StatusStoreUnavailable)
	}
	if slot.saved != nil {
		t.Error("cache must not be written on store failure")
	}
	if result.Err == nil {
		t.Error("expected user-facing error")
	}
}

// ストア書き込み失敗もStoreUnavailableになることを検証
func TestBind_StoreWriteFailure(t *testing.T) {
	store := &mockRecordStore{
		mergeWriteFn: func(ctx context.Context, userID string, patch *model.RecordPatch) (*model.UserRecord, error) {
			return nil, errors.New("write timeout")
		},
	}
	slot := &mockSlot{}
	svc := NewService(store, nil)

	result := svc.Bind(context.Background(), slot, testIdentity(), model.RoleDoctor)

	if result.Status != StatusStoreUnavailable {
		t.Fatalf("Status = %q, want %q", result.Status, StatusStoreUnavailable)
	}
	if slot.saved != nil {
		t.Error("cache must not be written on store failure")
	}
}

// マージパッチに最新プロフィールが含まれることを検証
func TestBind_PatchCarriesFreshProfile(t *testing.T) {
	var captured *model.RecordPatch
	store := &mockRecordStore{
		mergeWriteFn: func(ctx context.Context, userID string, patch *model.RecordPatch) (*model.UserRecord, error) {
			captured = patch
			return &model.UserRecord{UserID: userID, Role: patch.Role}, nil
		},
	}
	svc := NewService(store, nil)

	svc.Bind(context.Background(), &mockSlot{}, testIdentity(), model.RoleDoctor)

	if captured == nil {
		t.Fatal("expected merge write to be called")
	}
	if captured.FirstName == nil || *captured.FirstName != "太郎" {
		t.Error("patch should carry the fresh first name")
	}
	if captured.Email == nil || *captured.Email != "a@b.com" {
		t.Error("patch should carry the fresh email")
	}
	if captured.LastUpdated.IsZero() {
		t.Error("patch should carry last_updated")
	}
}

// 姓やアバターを持たないアイデンティティでもバインドできることを検証。
// 省略されたフィールドはパッチに含めず、ストア側で既存値（または空）が選ばれる。
func TestBind_MinimalIdentity_Bound(t *testing.T) {
	var captured *model.RecordPatch
	store := &mockRecordStore{
		mergeWriteFn: func(ctx context.Context, userID string, patch *model.RecordPatch) (*model.UserRecord, error) {
			captured = patch
			return &model.UserRecord{UserID: userID, Email: "nolast@example.com", Role: patch.Role}, nil
		},
	}
	svc := NewService(store, nil)

	identity := model.Identity{ID: "u-nolast", Email: "nolast@example.com", FirstName: "一郎"}
	result := svc.Bind(context.Background(), &mockSlot{}, identity, model.RolePharmacist)

	if result.Status != StatusBound {
		t.Fatalf("Status = %q, want %q", result.Status, StatusBound)
	}
	if captured == nil {
		t.Fatal("expected merge write to be called")
	}
	if captured.LastName != nil {
		t.Errorf("patch.LastName = %q, want nil", *captured.LastName)
	}
	if captured.AvatarURL != nil {
		t.Errorf("patch.AvatarURL = %q, want nil", *captured.AvatarURL)
	}
}

// --- Resolve ---

// ストアのレコードからセッション状態が構築されることを検証
func TestResolve_RecordFound(t *testing.T) {
	store := &mockRecordStore{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.UserRecord, error) {
			return &model.UserRecord{UserID: userID, Role: rolePtr(model.RoleDoctor)}, nil
		},
	}
	slot := &mockSlot{}
	svc := NewService(store, nil)

	state := svc.Resolve(context.Background(), slot, testIdentity())

	if state.Role != model.RoleDoctor {
		t.Errorf("Role = %q, want %q", state.Role, model.RoleDoctor)
	}
	if state.RoleFromCache {
		t.Error("role should come from the store, not the cache")
	}
	// キャッシュがミラー更新されること
	if slot.saved == nil {
		t.Error("expected cache to be refreshed from the store")
	}
	// プロフィールはプロバイダー由来の値がそのまま使われること
	if state.Identity.FirstName != "太郎" {
		t.Errorf("Identity.FirstName = %q, want provider value", state.Identity.FirstName)
	}
}

// レコード未存在でも役割なしの状態が返ることを検証
func TestResolve_NoRecord(t *testing.T) {
	svc := NewService(&mockRecordStore{}, nil)

	state := svc.Resolve(context.Background(), &mockSlot{}, testIdentity())

	if state.Role != "" {
		t.Errorf("Role = %q, want empty", state.Role)
	}
}

// ストア読み取り失敗時にキャッシュの役割で補完されることを検証
func TestResolve_StoreFailure_FallsBackToCache(t *testing.T) {
	store := &mockRecordStore{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.UserRecord, error) {
			return nil, errors.New("connection refused")
		},
	}
	slot := &mockSlot{
		loaded: &model.UserRecord{UserID: "u1", Role: rolePtr(model.RolePharmacist)},
	}
	svc := NewService(store, nil)

	state := svc.Resolve(context.Background(), slot, testIdentity())

	if state.Role != model.RolePharmacist {
		t.Errorf("Role = %q, want cached %q", state.Role, model.RolePharmacist)
	}
	if !state.RoleFromCache {
		t.Error("expected RoleFromCache to be set")
	}
}

// 他ユーザーのキャッシュは補完に使われないことを検証
func TestResolve_StoreFailure_IgnoresForeignCache(t *testing.T) {
	store := &mockRecordStore{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.UserRecord, error) {
			return nil, errors.New("connection refused")
		},
	}
	slot := &mockSlot{
		loaded: &model.UserRecord{UserID: "someone-else", Role: rolePtr(model.RoleDoctor)},
	}
	svc := NewService(store, nil)

	state := svc.Resolve(context.Background(), slot, testIdentity())

	if state.Role != "" {
		t.Errorf("Role = %q, want empty for foreign cache entry", state.Role)
	}
}
