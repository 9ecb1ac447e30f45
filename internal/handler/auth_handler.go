package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/holograma/internal/auth"
	"github.com/hitoshi/holograma/internal/middleware"
	"github.com/hitoshi/holograma/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Sync は検証済みSessionのユーザーを作成または更新して返す。
	Sync(ctx context.Context, session *auth.Session) (*model.User, error)
}

// AuthHandler はIDプロバイダとのユーザー同期を処理するHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// syncResponse はユーザー同期のレスポンス。
type syncResponse struct {
	OK   bool         `json:"ok"`
	Data userResponse `json:"data"`
}

// Sync はIdentityMiddlewareが検証したユーザーをusersテーブルに同期する。
// POST /api/auth/sync
func (h *AuthHandler) Sync(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.Sync(r.Context(), session)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		OK: true,
		Data: userResponse{
			UID:         user.UID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			CreatedAt:   user.CreatedAt,
			UpdatedAt:   user.UpdatedAt,
		},
	})
}
