package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

func (r *ProductGormRepository) FindByID(ctx context.Context, productID int64) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("id = ?", productID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (r *ProductGormRepository) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	//足りるときだけ1文で減算（同時注文でも負にならない）
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ProductGormRepository) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
