package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/medverify/internal/cache"
	"github.com/hitoshi/medverify/internal/middleware"
	"github.com/hitoshi/medverify/internal/model"
	"github.com/hitoshi/medverify/internal/rolebind"
)

// redirectDelayMS はバインド成功後、クライアントがダッシュボードへ遷移する
// までの待機時間（ミリ秒）。確認メッセージの表示時間を確保する。
const redirectDelayMS = 2000

// RoleBinderInterface は役割バインドハンドラーが必要とするサービスインターフェース。
type RoleBinderInterface interface {
	Bind(ctx context.Context, slot cache.Slot, identity model.Identity, requested model.Role) *rolebind.BindResult
}

// RoleHandler は役割バインディングのHTTPハンドラー。
type RoleHandler struct {
	binder RoleBinderInterface
	config AuthHandlerConfig
}

// NewRoleHandler はRoleHandlerを生成する。
func NewRoleHandler(binder RoleBinderInterface, config AuthHandlerConfig) *RoleHandler {
	return &RoleHandler{
		binder: binder,
		config: config,
	}
}

// bindRoleRequest は役割バインドリクエストのボディ。
type bindRoleRequest struct {
	Role string `json:"role"`
}

// bindRoleResponse はバインド成功時のレスポンス。
type bindRoleResponse struct {
	Role            string `json:"role"`
	RedirectTo      string `json:"redirect_to"`
	RedirectDelayMS int    `json:"redirect_delay_ms"`
}

// BindRole は認証済みユーザーに役割をバインドする。
// 同一役割の再バインドは冪等に成功し、異なる役割の要求は409で拒否される。
// POST /api/role
func (h *RoleHandler) BindRole(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req bindRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	requested := model.Role(req.Role)
	if !requested.Valid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRoleError(req.Role))
		return
	}

	slot := cache.NewCookieSlot(w, r, h.config.CookieSecure, h.config.CookieDomain, h.config.RecordCacheAge)
	result := h.binder.Bind(r.Context(), slot, identity, requested)

	switch result.Status {
	case rolebind.StatusBound:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(bindRoleResponse{
			Role:            string(result.Role),
			RedirectTo:      result.Role.DashboardPath(),
			RedirectDelayMS: redirectDelayMS,
		})
	case rolebind.StatusConflict:
		writeAPIErrorResponse(w, http.StatusConflict, result.Err)
	case rolebind.StatusStoreUnavailable:
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, result.Err)
	default:
		writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
			Code:     "INTERNAL_ERROR",
			Message:  "内部エラーが発生しました。",
			Category: "system",
			Action:   "しばらく待ってから再度お試しください。",
		})
	}
}
