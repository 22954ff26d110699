package usecase

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	repo "storefront/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// accesstokenの有効期限
const accessTokenTTL = 15 * time.Minute

type UserDTO struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type JwtAccessTokenDTO struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginResponse struct {
	User  UserDTO           `json:"user"`
	Token JwtAccessTokenDTO `json:"token"`
}

// ログイン入力の検証（実装はvalidatorパッケージ）
type AuthValidator interface {
	ValidateLogin(ctx context.Context, email string, password string) error
}

// ログインだけを持つ。ユーザーの発行・停止は外部の管理に任せる。
type AuthUsecase struct {
	users     repo.UserRepository
	validator AuthValidator
	jwtSecret []byte
}

func NewAuthUsecase(users repo.UserRepository, validator AuthValidator, jwtSecret []byte) *AuthUsecase {
	return &AuthUsecase{users: users, validator: validator, jwtSecret: jwtSecret}
}

func (u *AuthUsecase) Login(ctx context.Context, in AuthLoginRequest) (AuthLoginResponse, error) {
	email := strings.TrimSpace(in.Email)
	if err := u.validator.ValidateLogin(ctx, email, in.Password); err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := u.users.FindByEmail(ctx, email)
	if err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	//メール・パスワードのどちらが違うかは教えない
	if user == nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if !user.IsActive {
		return AuthLoginResponse{}, NewHTTPError(http.StatusForbidden, "user is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	now := time.Now()
	expiresAt := now.Add(accessTokenTTL)

	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(user.ID, 10),
		"email": user.Email,
		"role":  string(user.Role),
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(u.jwtSecret)
	if err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusInternalServerError, "token error")
	}

	//最終ログインはベストエフォート
	user.LastLoginAt = &now
	_ = u.users.Update(ctx, user)

	return AuthLoginResponse{
		User: UserDTO{
			ID:    user.ID,
			Email: user.Email,
			Role:  string(user.Role),
		},
		Token: JwtAccessTokenDTO{
			AccessToken: signed,
			ExpiresIn:   int(accessTokenTTL.Seconds()),
		},
	}, nil
}
