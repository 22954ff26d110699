package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	//見つからなければ(nil, nil)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
}
