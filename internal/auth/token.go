// Package auth はパスワード認証、JWTセッショントークンの発行・検証を提供する。
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims はセッショントークンのクレームセット。
// サーバー側にセッション状態は持たず、署名と有効期限のみで有効性を判定する。
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// TokenManager はHS256署名のJWTを発行・検証する。
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager はTokenManagerを生成する。
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue は指定ユーザーIDのセッショントークンを発行する。
func (m *TokenManager) Issue(userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、ユーザーIDを返す。
// 署名不正、期限切れ、不正な形式の場合はエラーを返す。
func (m *TokenManager) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", jwt.ErrTokenInvalidClaims
	}

	return claims.UserID, nil
}
