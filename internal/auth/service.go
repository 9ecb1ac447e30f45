package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/holograma/internal/model"
	"github.com/hitoshi/holograma/internal/repository"
)

// Service はIDトークンの検証と、検証済みユーザーのusersテーブルへの同期を行う。
type Service struct {
	verifier TokenVerifier
	users    repository.UserRepository
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(verifier TokenVerifier, users repository.UserRepository, logger *slog.Logger) *Service {
	return &Service{
		verifier: verifier,
		users:    users,
		logger:   logger,
	}
}

// Authenticate はトークンを検証してSessionを返す。
// トークンが不正な場合はmodel.APIError（INVALID_ID_TOKEN）を返す。
// 公開鍵の取得失敗など検証自体ができなかった場合はログに記録し、APIErrorではないエラーを返す。
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*Session, error) {
	session, err := s.verifier.Verify(ctx, rawToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, model.NewInvalidIDTokenError()
		}
		s.logger.Error("IDトークンの検証中にエラーが発生しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("IDトークンを検証できません: %w", err)
	}
	return session, nil
}

// Sync は検証済みSessionのsubjectをキーにユーザーをUPSERTし、保存後のユーザーを返す。
func (s *Service) Sync(ctx context.Context, session *Session) (*model.User, error) {
	user, err := s.users.Upsert(ctx, &model.User{
		UID:         session.UID,
		Email:       session.Email,
		DisplayName: session.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("ユーザーの同期に失敗しました: %w", err)
	}

	s.logger.Info("ユーザーを同期しました", slog.String("user_id", user.UID))
	return user, nil
}
