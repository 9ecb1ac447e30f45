// Package auth はIDプロバイダが発行したIDトークンの検証とユーザー同期を提供する。
package auth

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidToken はIDトークンの検証に失敗した場合に返される。
var ErrInvalidToken = errors.New("invalid id token")

// ErrKeysUnavailable は署名検証用の公開鍵を取得できなかった場合に返される。
// トークン自体の不正ではなく、IDプロバイダ側の障害を表す。
var ErrKeysUnavailable = errors.New("id token signing keys unavailable")

// Session は検証済みIDトークンから得た認証済みユーザーを表す。
// リクエスト処理中は明示的な値として受け渡す。
type Session struct {
	UID       string
	Email     string
	Name      string
	ExpiresAt time.Time
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
