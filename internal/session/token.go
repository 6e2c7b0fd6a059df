package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired はトークンがJWTとして読め、かつexpが現在時刻以前の場合にtrueを返す。
// 署名はバックエンドが検証するためここでは確認しない。
// JWTとして解釈できない不透明トークンやexpを持たないトークンは期限切れとみなさない。
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
