package repository

import (
	"context"

	"storefront/internal/domain/model"

	"gorm.io/gorm"
)

type TrackingEventGormRepository struct {
	db *gorm.DB
}

func NewTrackingEventGormRepository(db *gorm.DB) *TrackingEventGormRepository {
	return &TrackingEventGormRepository{db: db}
}

func (r *TrackingEventGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.TrackingEvent, error) {
	var events []model.TrackingEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *TrackingEventGormRepository) Append(ctx context.Context, event model.TrackingEvent) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		return 0, err
	}
	return event.ID, nil
}

func (r *TrackingEventGormRepository) DemoteCurrent(ctx context.Context, orderID int64) error {
	//CURRENTは最大1件の約束だが、WHEREで全部落とすので壊れていても直る
	return r.db.WithContext(ctx).Model(&model.TrackingEvent{}).
		Where("order_id = ? AND status_tag = ?", orderID, model.TrackingTagCurrent).
		Update("status_tag", model.TrackingTagCompleted).Error
}
