package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hitoshi/medverify/internal/middleware"
)

// AvatarFetcherInterface はアバターハンドラーが必要とするフェッチャーインターフェース。
type AvatarFetcherInterface interface {
	// Fetch はアバター画像を取得する。取得できない場合はnilを返す（エラーにしない）。
	Fetch(ctx context.Context, avatarURL string) ([]byte, string)
}

// AvatarHandler はプロフィール画像プロキシのHTTPハンドラー。
// 外部のアバターURLをサーバー側で取得することで、SSRFガードを通した
// 安全な取得とクライアント側のクロスオリジン問題の回避を両立する。
type AvatarHandler struct {
	fetcher AvatarFetcherInterface
}

// NewAvatarHandler はAvatarHandlerを生成する。
func NewAvatarHandler(fetcher AvatarFetcherInterface) *AvatarHandler {
	return &AvatarHandler{fetcher: fetcher}
}

// Me はログイン中ユーザーのアバター画像を返す。
// アバターが未設定または取得失敗の場合は404を返し、クライアントは
// デフォルト画像にフォールバックする。
// GET /api/users/me/avatar
func (h *AvatarHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	if identity.AvatarURL == "" {
		http.NotFound(w, r)
		return
	}

	data, mimeType := h.fetcher.Fetch(r.Context(), identity.AvatarURL)
	if data == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}
