package validator

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"storefront/internal/usecase"
)

var (
	// 必須項目が欠けている
	ErrCredentialsRequired = errors.New("email and password required")

	// email形式が不正
	ErrInvalidEmail = errors.New("invalid email format")
)

type authValidator struct{}

// Usecaseは interface を依存注入
func NewAuthValidator() usecase.AuthValidator {
	return &authValidator{}
}

// ログインの入力を検証
func (v *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)

	// 必須チェック
	if email == "" || password == "" {
		return ErrCredentialsRequired
	}

	// email形式
	if !isEmailLike(email) {
		return ErrInvalidEmail
	}

	return nil
}

// 簡易メール形式をチェック
func isEmailLike(s string) bool {
	re := regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	return re.MatchString(s)
}
