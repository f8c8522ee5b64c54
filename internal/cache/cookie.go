// Package cache はユーザーレコードのローカルキャッシュを提供する。
// 真実の源は永続ストア（user_records）であり、キャッシュは読み取り高速化の
// ためのミラーに過ぎない。書き込み失敗は致命的ではなく、食い違いは常に
// ストアの再読取で解決される。
package cache

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/medverify/internal/model"
)

// RecordCookieName はキャッシュ用クッキーの名前。
const RecordCookieName = "medverify_record"

// Slot はリクエスト単位のレコードキャッシュスロット。
// 実装はHTTPクッキーだが、役割バインディング側はこの抽象のみに依存する。
type Slot interface {
	// Load はキャッシュ済みレコードを返す。未キャッシュまたは破損時はnilを返す。
	Load() *model.UserRecord
	// Save はレコードをキャッシュに書き込む。失敗してもエラーは返さない。
	Save(rec *model.UserRecord)
	// Clear はキャッシュを破棄する。
	Clear()
}

// cachedRecord はクッキーに保存されるレコードのワイヤ形式。
type cachedRecord struct {
	UserID    string      `json:"user_id"`
	Email     string      `json:"email"`
	Role      *model.Role `json:"role,omitempty"`
	FirstName string      `json:"first_name,omitempty"`
	LastName  string      `json:"last_name,omitempty"`
	AvatarURL string      `json:"avatar_url,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CookieSlot はHTTPクッキーによるSlot実装。
// ペイロードはJSONをbase64urlエンコードした値。署名はしない。
// キャッシュは権限判定に使われないため、改竄されても認可には影響しない。
type CookieSlot struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool
	domain string
	maxAge int
}

// NewCookieSlot はリクエストに紐付くCookieSlotを作成する。
func NewCookieSlot(w http.ResponseWriter, r *http.Request, secure bool, domain string, maxAge int) *CookieSlot {
	return &CookieSlot{w: w, r: r, secure: secure, domain: domain, maxAge: maxAge}
}

// Load はクッキーからキャッシュ済みレコードを復元する。
// クッキーが存在しない、またはデコードできない場合はnilを返す。
func (c *CookieSlot) Load() *model.UserRecord {
	cookie, err := c.r.Cookie(RecordCookieName)
	if err != nil {
		return nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}

	var cached cachedRecord
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil
	}
	if cached.UserID == "" {
		return nil
	}

	return &model.UserRecord{
		UserID:      cached.UserID,
		Email:       cached.Email,
		Role:        cached.Role,
		FirstName:   cached.FirstName,
		LastName:    cached.LastName,
		AvatarURL:   cached.AvatarURL,
		LastUpdated: cached.UpdatedAt,
	}
}

// Save はレコードをクッキーに書き込む。
func (c *CookieSlot) Save(rec *model.UserRecord) {
	if rec == nil {
		return
	}

	cached := cachedRecord{
		UserID:    rec.UserID,
		Email:     rec.Email,
		Role:      rec.Role,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		AvatarURL: rec.AvatarURL,
		UpdatedAt: rec.LastUpdated,
	}

	raw, err := json.Marshal(cached)
	if err != nil {
		return
	}

	http.SetCookie(c.w, &http.Cookie{
		Name:     RecordCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   c.maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear はキャッシュ用クッキーを破棄する。
func (c *CookieSlot) Clear() {
	http.SetCookie(c.w, &http.Cookie{
		Name:     RecordCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

var _ Slot = (*CookieSlot)(nil)

// DecodeValue はクッキー値からレコードを復元するヘルパー。テストや診断用。
func DecodeValue(value string) (*model.UserRecord, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cached record: %w", err)
	}
	var cached cachedRecord
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("failed to parse cached record: %w", err)
	}
	return &model.UserRecord{
		UserID:      cached.UserID,
		Email:       cached.Email,
		Role:        cached.Role,
		FirstName:   cached.FirstName,
		LastName:    cached.LastName,
		AvatarURL:   cached.AvatarURL,
		LastUpdated: cached.UpdatedAt,
	}, nil
}
