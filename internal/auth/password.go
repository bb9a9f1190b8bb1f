package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword はパスワードのbcryptハッシュを生成する。
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword はパスワードと保存済みハッシュを照合する。
// 一致しない場合はfalseを返す（エラーにはしない）。
func ComparePassword(plain, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
