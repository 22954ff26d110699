package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) FindBySessionID(ctx context.Context, sessionID string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return 0, err
	}
	return order.ID, nil
}

func (r *OrderGormRepository) List(ctx context.Context, f repo.OrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	//買い手スコープ（my-orders）
	if f.BuyerID != nil {
		q = q.Where("buyer_id = ?", *f.BuyerID)
	}

	//フリーテキスト検索（商品名・配送先・メール）
	if f.SearchText != "" {
		like := "%" + f.SearchText + "%"
		q = q.Where(
			"product_name_snapshot ILIKE ? OR buyer_email ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ?",
			like, like, like, like,
		)
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) UpdateStatusIfCurrent(ctx context.Context, orderID int64, expected model.OrderStatus, next model.OrderStatus, patch repo.OrderTransitionPatch) error {
	fields := map[string]any{"status": next}
	if patch.RejectionReason != nil {
		fields["rejection_reason"] = *patch.RejectionReason
	}
	if patch.ApprovedAt != nil {
		fields["approved_at"] = *patch.ApprovedAt
	}
	if patch.RejectedAt != nil {
		fields["rejected_at"] = *patch.RejectedAt
	}
	if patch.CancelledAt != nil {
		fields["cancelled_at"] = *patch.CancelledAt
	}
	if patch.DeliveredAt != nil {
		fields["delivered_at"] = *patch.DeliveredAt
	}
	if patch.TrackingNumber != nil {
		fields["tracking_number"] = *patch.TrackingNumber
	}
	if patch.Carrier != nil {
		fields["carrier"] = *patch.Carrier
	}

	//期待ステータス付きUPDATE。0件なら競合か消失かを確認しに行く。
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, expected).
		Updates(fields)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Order{}).
			Where("id = ?", orderID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return repo.ErrNotFound
		}
		return repo.ErrConflict
	}
	return nil
}

func (r *OrderGormRepository) MarkPaid(ctx context.Context, orderID int64, patch repo.PaymentPatch) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status <> ?", orderID, model.PaymentStatusPaid).
		Updates(map[string]any{
			"payment_status": model.PaymentStatusPaid,
			"transaction_id": patch.TransactionID,
			"tracking_id":    patch.TrackingID,
			"paid_at":        patch.PaidAt,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Order{}).
			Where("id = ?", orderID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return repo.ErrNotFound
		}
		//すでにPAID
		return repo.ErrConflict
	}
	return nil
}
