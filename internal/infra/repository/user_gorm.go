package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	domainrepo "storefront/internal/repository"

	"gorm.io/gorm"
)

type userGormRepository struct {
	db *gorm.DB
}

// main.goでこれをnewしてusecaseに注入します。
func NewUserGormRepository(db *gorm.DB) domainrepo.UserRepository {
	return &userGormRepository{db: db}
}

// emailでユーザーを1件取得
func (r *userGormRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User

	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&u).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &u, nil
}

// IDでユーザーを1件取得
func (r *userGormRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&u).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &u, nil
}

// ユーザーを更新。
func (r *userGormRepository) Update(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return err
	}
	return nil
}
