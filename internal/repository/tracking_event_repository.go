package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type TrackingEventRepository interface {
	//追記順で返す
	ListByOrderID(ctx context.Context, orderID int64) ([]model.TrackingEvent, error)
	Append(ctx context.Context, event model.TrackingEvent) (int64, error)
	//CURRENTのイベントをCOMPLETEDに落とす（新しいCURRENTを追記する前に呼ぶ）
	DemoteCurrent(ctx context.Context, orderID int64) error
}
