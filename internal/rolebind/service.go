// Package rolebind は認証済みアイデンティティと役割の結び付けを管理する。
// 1アイデンティティにつき役割は1つまで。一度設定された役割は同一役割の
// 再確認のみ許され、異なる役割の要求は上書きせず競合として報告する。
package rolebind

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/medverify/internal/cache"
	"github.com/hitoshi/medverify/internal/metrics"
	"github.com/hitoshi/medverify/internal/model"
	"github.com/hitoshi/medverify/internal/repository"
)

// BindStatus はバインディング操作の結果種別。
type BindStatus string

const (
	// StatusBound は役割の確定（再確認を含む）を表す。
	StatusBound BindStatus = "bound"
	// StatusConflict は既存の役割と要求された役割の競合を表す。書き込みは行われない。
	StatusConflict BindStatus = "conflict"
	// StatusStoreUnavailable はストアの読み書き失敗を表す。ローカル状態は変更されない。
	StatusStoreUnavailable BindStatus = "store_unavailable"
)

// BindResult はバインディング操作の結果。
type BindResult struct {
	Status       BindStatus
	Role         model.Role        // StatusBoundの場合に確定した役割
	ExistingRole model.Role        // StatusConflictの場合に既に結び付いている役割
	Record       *model.UserRecord // StatusBoundの場合にマージ後のレコード
	Err          *model.APIError   // StatusConflict / StatusStoreUnavailableの場合のユーザー向けエラー
}

// Service は役割バインディングのビジネスロジックを提供する。
type Service struct {
	store   repository.RecordStore
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceを生成する。collectorはnil可。
func NewService(store repository.RecordStore, collector metrics.MetricsCollector) *Service {
	return &Service{
		store:   store,
		metrics: collector,
		now:     time.Now,
	}
}

// Bind は(identity, requestedRole)の組を検証し、許可されればストアとローカル
// キャッシュの両方に確定する。
//
// 競合は2つの経路から検出する。アイデンティティ自身のレコードと、同じメール
// アドレスを持つ他のレコード（別プロバイダーのアカウントで同じメールが既に
// 役割を持っているケース）。複数レコードが同一メールを共有する場合は
// last_updatedが最古のレコードを優先する。
//
// ストアの読み書き失敗はStatusStoreUnavailableに分類され、呼び出し側には
// 伝播しない。失敗パスではキャッシュへの書き込みは一切行われない。
func (s *Service) Bind(ctx context.Context, slot cache.Slot, identity model.Identity, requested model.Role) *BindResult {
	start := s.now()
	result := s.bind(ctx, slot, identity, requested)
	s.observe(result.Status, s.now().Sub(start))
	return result
}

func (s *Service) bind(ctx context.Context, slot cache.Slot, identity model.Identity, requested model.Role) *BindResult {
	// 1. アイデンティティ自身のレコードを確認
	own, err := s.store.FindByUserID(ctx, identity.ID)
	if err != nil {
		slog.Error("record store read failed",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return storeUnavailable()
	}

	if own != nil && own.HasRole() && *own.Role != requested {
		return conflict(*own.Role, requested)
	}

	// 2. 自身のレコードがない場合のみ、同一メールの他レコードを確認
	if own == nil && identity.Email != "" {
		existingRole, ok, err := s.findRoleByEmail(ctx, identity.ID, identity.Email)
		if err != nil {
			slog.Error("record store email query failed",
				slog.String("user_id", identity.ID),
				slog.String("error", err.Error()),
			)
			return storeUnavailable()
		}
		if ok && existingRole != requested {
			return conflict(existingRole, requested)
		}
	}

	// 3. 役割と最新プロフィールをマージ書き込み
	merged, err := s.store.MergeWrite(ctx, identity.ID, s.patchFor(identity, requested))
	if err != nil {
		slog.Error("record store write failed",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return storeUnavailable()
	}

	// 4. 成功時のみキャッシュをミラー更新
	if slot != nil {
		slot.Save(merged)
	}

	slog.Info("role bound",
		slog.String("user_id", identity.ID),
		slog.String("role", string(requested)),
	)
	return &BindResult{Status: StatusBound, Role: requested, Record: merged}
}

// Resolve はサインイン直後のセッション状態を構築する。
// プロフィールはIdentityProviderの値を無条件に採用し、役割のみストアから読む。
// ストアが読めない場合はキャッシュの役割で代替し、その旨をフラグで示す。
func (s *Service) Resolve(ctx context.Context, slot cache.Slot, identity model.Identity) *model.SessionState {
	state := &model.SessionState{Identity: identity}

	own, err := s.store.FindByUserID(ctx, identity.ID)
	if err != nil {
		slog.Warn("record store read failed, falling back to cached role",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		if slot != nil {
			if cached := slot.Load(); cached != nil && cached.UserID == identity.ID && cached.HasRole() {
				state.Role = *cached.Role
				state.RoleFromCache = true
			}
		}
		return state
	}

	if own != nil {
		if own.HasRole() {
			state.Role = *own.Role
		}
		if slot != nil {
			slot.Save(own)
		}
	}
	return state
}

// findRoleByEmail は同一メールを持つ他アカウントの役割を探す。
// レコードはlast_updated昇順で返されるため、最古の役割付きレコードが優先される。
func (s *Service) findRoleByEmail(ctx context.Context, ownID, email string) (model.Role, bool, error) {
	records, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return "", false, err
	}
	for _, rec := range records {
		if rec.UserID == ownID {
			continue
		}
		if rec.HasRole() {
			return *rec.Role, true, nil
		}
	}
	return "", false, nil
}

// patchFor は役割と最新プロフィールのマージパッチを構築する。
func (s *Service) patchFor(identity model.Identity, role model.Role) *model.RecordPatch {
	patch := &model.RecordPatch{
		Role:        &role,
		LastUpdated: s.now(),
	}
	if identity.Email != "" {
		patch.Email = &identity.Email
	}
	if identity.FirstName != "" {
		patch.FirstName = &identity.FirstName
	}
	if identity.LastName != "" {
		patch.LastName = &identity.LastName
	}
	if identity.AvatarURL != "" {
		patch.AvatarURL = &identity.AvatarURL
	}
	return patch
}

func (s *Service) observe(status BindStatus, d time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordBindOutcome(string(status))
	s.metrics.RecordBindLatency(d)
}

func conflict(existing, requested model.Role) *BindResult {
	return &BindResult{
		Status:       StatusConflict,
		ExistingRole: existing,
		Err:          model.NewRoleConflictError(existing, requested),
	}
}

func storeUnavailable() *BindResult {
	return &BindResult{
		Status: StatusStoreUnavailable,
		Err:    model.NewStoreUnavailableError(),
	}
}
