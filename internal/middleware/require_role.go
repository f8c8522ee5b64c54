package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/medverify/internal/model"
)

// RoleFinder は役割の参照に必要なインターフェース。
// repository.RecordStoreの部分集合として定義する。
type RoleFinder interface {
	FindByUserID(ctx context.Context, userID string) (*model.UserRecord, error)
}

// NewRequireRoleMiddleware は指定された役割を持つユーザーのみを通過させる
// ミドルウェアを返す。SessionMiddlewareの後に配置すること。
//
// 認可判定は常に永続ストアを読む。ローカルキャッシュは改竄され得るため
// 参照しない。ストアが読めない場合は拒否側に倒す。
func NewRequireRoleMiddleware(roleFinder RoleFinder, required model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := IdentityFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			rec, err := roleFinder.FindByUserID(r.Context(), identity.ID)
			if err != nil {
				slog.Error("failed to check role",
					slog.String("user_id", identity.ID),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewStoreUnavailableError())
				return
			}

			if rec == nil || !rec.HasRole() || *rec.Role != required {
				WriteErrorResponse(w, http.StatusForbidden, model.NewRoleRequiredError(required))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
