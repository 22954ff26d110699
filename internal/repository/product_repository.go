package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

type ProductRepository interface {
	FindByID(ctx context.Context, productID int64) (model.Product, error)

	// 在庫が足りるときだけ減算
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル・却下など）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error
}
