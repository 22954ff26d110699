package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	smachine "storefront/internal/domain/order"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	tx        repo.TransactionManager
	publisher OrderEventPublisher
	logger    *zap.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, publisher OrderEventPublisher, logger *zap.Logger) *AdminOrderUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminOrderUsecase{tx: tx, publisher: publisher, logger: logger}
}

type AdminUpdateOrderStatusInput struct {
	Status string
	Reason string
}

// 注文一覧（MANAGER/ADMIN）
func (u *AdminOrderUsecase) List(ctx context.Context, actor Actor, f repo.OrderListFilter) (OrderListOutput, error) {
	if actor.UserID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !actor.Role.IsStaff() {
		return OrderListOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	var out OrderListOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		items, total, err := r.Orders().List(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = OrderListOutput{Items: items, Total: total, Page: f.Page, Limit: f.Limit}
		return nil
	})

	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

// ステータス遷移。グラフとロール表で判定し、期待ステータス付きUPDATEで書く。
// 同じ注文に別の操作が先に入っていたら409を返し、黙って上書きはしない。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actor Actor, orderID int64, in AdminUpdateOrderStatusInput) (model.Order, error) {
	if actor.UserID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	target := model.OrderStatus(strings.TrimSpace(in.Status))
	switch target {
	case model.OrderStatusApproved, model.OrderStatusRejected,
		model.OrderStatusDelivered, model.OrderStatusCancelled:
		// OK
	default:
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	reason := strings.TrimSpace(in.Reason)

	var out model.Order
	var from model.OrderStatus

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := smachine.Check(smachine.TransitionRequest{
			From:          o.Status,
			To:            target,
			Role:          actor.Role,
			Reason:        reason,
			PaymentStatus: o.PaymentStatus,
		}); err != nil {
			return transitionError(err)
		}

		//遷移先ごとのタイムスタンプ（最初の突入時に1回だけ。前状態CASなので再突入は起きない）
		now := time.Now()
		patch := repo.OrderTransitionPatch{}
		switch target {
		case model.OrderStatusApproved:
			patch.ApprovedAt = &now
		case model.OrderStatusRejected:
			patch.RejectedAt = &now
			patch.RejectionReason = &reason
		case model.OrderStatusDelivered:
			patch.DeliveredAt = &now
		case model.OrderStatusCancelled:
			patch.CancelledAt = &now
		}

		err = r.Orders().UpdateStatusIfCurrent(ctx, orderID, o.Status, target, patch)
		if err == repo.ErrConflict {
			return NewHTTPError(http.StatusConflict, "order status changed, refresh and retry")
		}
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//REJECTED / CANCELLED は在庫戻し
		if target == model.OrderStatusRejected || target == model.OrderStatusCancelled {
			if err := r.Products().IncreaseStock(ctx, o.ProductID, o.Quantity); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		//追跡タイムライン
		var step *model.TrackingEvent
		switch target {
		case model.OrderStatusApproved:
			step = &model.TrackingEvent{
				OrderID: orderID, Step: "Order Confirmed",
				StatusTag: model.TrackingTagCurrent,
				Note:      "Order approved and queued for fulfilment",
				Icon:      "check", OccurredAt: now,
			}
		case model.OrderStatusDelivered:
			step = &model.TrackingEvent{
				OrderID: orderID, Step: "Delivered",
				StatusTag: model.TrackingTagCompleted,
				Icon:      "home", OccurredAt: now,
			}
		case model.OrderStatusRejected:
			step = &model.TrackingEvent{
				OrderID: orderID, Step: "Order Rejected",
				StatusTag: model.TrackingTagCompleted,
				Note:      reason,
				Icon:      "cancel", OccurredAt: now,
			}
		case model.OrderStatusCancelled:
			step = &model.TrackingEvent{
				OrderID: orderID, Step: "Order Cancelled",
				StatusTag: model.TrackingTagCompleted,
				Icon:      "cancel", OccurredAt: now,
			}
		}
		if step != nil {
			if err := r.TrackingEvents().DemoteCurrent(ctx, orderID); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if _, err := r.TrackingEvents().Append(ctx, *step); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		//監査ログ（UPDATE_ORDER_STATUS）
		beforeJSON := `{"status":"` + string(o.Status) + `"}`
		afterJSON := `{"status":"` + string(target) + `"}`
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   beforeJSON,
			AfterJSON:    afterJSON,
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		from = o.Status
		o.Status = target
		switch target {
		case model.OrderStatusApproved:
			o.ApprovedAt = &now
		case model.OrderStatusRejected:
			o.RejectedAt = &now
			o.RejectionReason = &reason
		case model.OrderStatusDelivered:
			o.DeliveredAt = &now
		case model.OrderStatusCancelled:
			o.CancelledAt = &now
		}
		out = o
		return nil
	})

	if err != nil {
		return model.Order{}, err
	}

	if u.publisher != nil {
		if err := u.publisher.PublishStatusChanged(ctx, orderID, from, target, actor.UserID, actor.Role); err != nil {
			u.logger.Warn("publish status change failed",
				zap.Int64("order_id", orderID),
				zap.String("to", string(target)),
				zap.Error(err),
			)
		}
	}
	return out, nil
}

type AppendTrackingInput struct {
	Step           string
	StatusTag      string
	Location       string
	Note           string
	Icon           string
	TrackingNumber string
	Carrier        string
}

// 配送マイルストーンの追記（MANAGER/ADMIN）。
// CURRENTを追記するときは既存のCURRENTをCOMPLETEDへ落としてから入れる。
func (u *AdminOrderUsecase) AppendTrackingStep(ctx context.Context, actor Actor, orderID int64, in AppendTrackingInput) ([]model.TrackingEvent, error) {
	if actor.UserID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !actor.Role.IsStaff() {
		return nil, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if orderID <= 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if strings.TrimSpace(in.Step) == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "step required")
	}

	tag := model.TrackingStatusTag(strings.TrimSpace(in.StatusTag))
	switch tag {
	case model.TrackingTagCompleted, model.TrackingTagCurrent, model.TrackingTagPending:
		// OK
	default:
		return nil, NewHTTPError(http.StatusBadRequest, "invalid status_tag")
	}

	var out []model.TrackingEvent

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//終端の注文には追記しない（配達時のステップは遷移側が入れる）
		if o.Status.IsTerminal() {
			return NewHTTPError(http.StatusBadRequest, "order is closed")
		}

		now := time.Now()

		if tag == model.TrackingTagCurrent {
			if err := r.TrackingEvents().DemoteCurrent(ctx, orderID); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}
		if _, err := r.TrackingEvents().Append(ctx, model.TrackingEvent{
			OrderID:    orderID,
			Step:       strings.TrimSpace(in.Step),
			StatusTag:  tag,
			Location:   strings.TrimSpace(in.Location),
			Note:       in.Note,
			Icon:       in.Icon,
			OccurredAt: now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//キャリアと送り状番号はこのタイミングで注文に入る（ステータスは動かさない）
		if in.TrackingNumber != "" || in.Carrier != "" {
			patch := repo.OrderTransitionPatch{}
			if v := strings.TrimSpace(in.TrackingNumber); v != "" {
				patch.TrackingNumber = &v
			}
			if v := strings.TrimSpace(in.Carrier); v != "" {
				patch.Carrier = &v
			}
			err := r.Orders().UpdateStatusIfCurrent(ctx, orderID, o.Status, o.Status, patch)
			if err == repo.ErrConflict {
				return NewHTTPError(http.StatusConflict, "order status changed, refresh and retry")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionAppendTracking,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			AfterJSON:    `{"step":"` + strings.TrimSpace(in.Step) + `"}`,
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		events, err := r.TrackingEvents().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = events
		return nil
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}
