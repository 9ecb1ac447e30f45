// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hitoshi/holograma/internal/auth"
	"github.com/hitoshi/holograma/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストに認証済みSessionを格納するためのキー。
var sessionContextKey = contextKey("identity_session")

// Authenticator はBearerトークンを検証してSessionを返す。
// auth.Serviceが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*auth.Session, error)
}

// NewIdentityMiddleware はAuthorizationヘッダーのIDトークンを検証し、
// 認証済みSessionをリクエストコンテキストに注入するミドルウェアを返す。
// ヘッダーがないリクエストは匿名のまま通し、不正なトークンには401を返す。
// 検証そのものができなかった場合（IDプロバイダの障害など）は500を返す。
func NewIdentityMiddleware(authn Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := auth.BearerToken(header)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			session, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
					return
				}
				WriteInternalServerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// SessionFromContext はリクエストコンテキストから認証済みSessionを取得する。
func SessionFromContext(ctx context.Context) (*auth.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*auth.Session)
	if !ok || session == nil {
		return nil, false
	}
	return session, true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// IdentityMiddlewareで認証されたリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	session, ok := SessionFromContext(ctx)
	if !ok || session.UID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return session.UID, nil
}

// ContextWithSession はコンテキストにSessionを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
