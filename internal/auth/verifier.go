package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// clockSkew はexp/iat検証で許容する時刻のずれ。
const clockSkew = 30 * time.Second

// TokenVerifier はIDトークンを検証してSessionを返す。
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Session, error)
}

// idTokenClaims はIDトークンのクレーム。
type idTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// IDTokenVerifier はRS256署名のIDトークンを検証する。
// audはプロジェクトID、issは issuerPrefix + プロジェクトID であることを要求する。
type IDTokenVerifier struct {
	keys      KeySource
	projectID string
	issuer    string
	now       func() time.Time
}

var _ TokenVerifier = (*IDTokenVerifier)(nil)

// NewIDTokenVerifier はIDTokenVerifierを生成する。
func NewIDTokenVerifier(keys KeySource, projectID, issuerPrefix string) *IDTokenVerifier {
	return &IDTokenVerifier{
		keys:      keys,
		projectID: projectID,
		issuer:    issuerPrefix + projectID,
		now:       time.Now,
	}
}

// Verify はトークンの署名・有効期限・aud・issを検証し、Sessionを返す。
// 検証に失敗した場合はErrInvalidTokenをラップしたエラーを返す。
// 公開鍵を取得できなかった場合はトークンの不正として扱わず、ErrKeysUnavailableのまま返す。
func (v *IDTokenVerifier) Verify(ctx context.Context, rawToken string) (*Session, error) {
	claims := &idTokenClaims{}
	var keyErr error
	_, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header has no kid")
		}
		key, err := v.keys.PublicKey(ctx, kid)
		if errors.Is(err, ErrKeysUnavailable) {
			keyErr = err
		}
		return key, err
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(v.now),
	)
	if keyErr != nil {
		return nil, keyErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	return &Session{
		UID:       claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
