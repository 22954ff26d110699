package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	smachine "storefront/internal/domain/order"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 操作している本人。認証ミドルウェアがJWTから組み立ててhandler経由で渡す。
// グローバルなセッション状態は読まない。
type Actor struct {
	UserID int64
	Email  string
	Role   model.Role
}

// 遷移イベントを外へ流す約束（Kafka実装をmainで注入）
type OrderEventPublisher interface {
	PublishStatusChanged(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus, actorUserID int64, actorRole model.Role) error
}

// 状態機械のエラーをHTTPエラーへ写す
func transitionError(err error) error {
	switch {
	case errors.Is(err, smachine.ErrPermission):
		return NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, smachine.ErrReasonRequired):
		return NewHTTPError(http.StatusBadRequest, "reason required")
	case errors.Is(err, smachine.ErrPaymentNotSettled):
		return NewHTTPError(http.StatusBadRequest, "payment not settled")
	case errors.Is(err, smachine.ErrInvalidTransition):
		return NewHTTPError(http.StatusBadRequest, "invalid transition")
	}
	return NewHTTPError(http.StatusInternalServerError, "internal error")
}

type OrderUsecase struct {
	tx        repo.TransactionManager
	publisher OrderEventPublisher
}

func NewOrderUsecase(tx repo.TransactionManager, publisher OrderEventPublisher) *OrderUsecase {
	return &OrderUsecase{tx: tx, publisher: publisher}
}

type PlaceOrderInput struct {
	ProductID     int64
	Quantity      int64
	FirstName     string
	LastName      string
	ContactNumber string
	Address       string
	Notes         string
	PaymentMethod string
}

type OrderListOutput struct {
	Items []model.Order `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

type TrackOrderOutput struct {
	Order       model.Order           `json:"order"`
	Tracking    []model.TrackingEvent `json:"tracking_history"`
	CurrentStep *model.TrackingEvent  `json:"current_step,omitempty"`
}

func (u *OrderUsecase) PlaceOrder(ctx context.Context, buyer Actor, in PlaceOrderInput) (model.Order, error) {
	if buyer.UserID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	//配送先の必須チェック
	if strings.TrimSpace(in.FirstName) == "" {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "first_name required")
	}
	if strings.TrimSpace(in.LastName) == "" {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "last_name required")
	}
	if strings.TrimSpace(in.ContactNumber) == "" {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "contact_number required")
	}
	if strings.TrimSpace(in.Address) == "" {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "address required")
	}

	method := model.PaymentMethod(strings.TrimSpace(in.PaymentMethod))
	switch method {
	case model.PaymentMethodOnline, model.PaymentMethodCashOnDelivery:
		// OK
	default:
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid payment_method")
	}

	var out model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, in.ProductID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "product not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !p.IsActive {
			return NewHTTPError(http.StatusBadRequest, "product not available")
		}

		//数量の上限・下限（注文を作る前に弾く）
		if in.Quantity > p.Stock {
			return NewHTTPError(http.StatusBadRequest, "exceeds available stock")
		}
		if in.Quantity < p.MOQ {
			return NewHTTPError(http.StatusBadRequest, "quantity below moq")
		}

		//在庫減算（同時注文で足りなくなっていたらfalse）
		ok, err := r.Products().DecreaseStockIfEnough(ctx, in.ProductID, in.Quantity)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			return NewHTTPError(http.StatusBadRequest, "exceeds available stock")
		}

		now := time.Now()
		o := model.Order{
			BuyerID:    buyer.UserID,
			BuyerEmail: buyer.Email,

			//商品スナップショット
			ProductID:           p.ID,
			ProductNameSnapshot: p.Name,
			UnitPriceSnapshot:   p.Price,
			MOQSnapshot:         p.MOQ,
			Quantity:            in.Quantity,
			TotalPrice:          p.Price * in.Quantity,

			FirstName:     strings.TrimSpace(in.FirstName),
			LastName:      strings.TrimSpace(in.LastName),
			ContactNumber: strings.TrimSpace(in.ContactNumber),
			Address:       strings.TrimSpace(in.Address),
			Notes:         in.Notes,

			PaymentMethod: method,
			Status:        model.OrderStatusPending,
			PaymentStatus: model.PaymentStatusUnpaid,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		//オンライン決済は同じ呼び出しの中でPAYMENT_PENDINGへ進める（自動エッジ）。
		//チェックアウトURLの発行はゲートウェイ側の仕事で、ここではcallback照合用の
		//セッションIDだけ持つ。
		if method == model.PaymentMethodOnline {
			sessionID := "sess_" + uuid.NewString()
			o.SessionID = &sessionID
			o.Status = model.OrderStatusPaymentPending
			o.PaymentStatus = model.PaymentStatusPending
		}

		orderID, err := r.Orders().Create(ctx, o)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		o.ID = orderID

		//追跡タイムラインの最初のステップ
		if _, err := r.TrackingEvents().Append(ctx, model.TrackingEvent{
			OrderID:    orderID,
			Step:       "Order Placed",
			StatusTag:  model.TrackingTagCurrent,
			Note:       "Order received and awaiting review",
			Icon:       "receipt",
			OccurredAt: now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = o
		return nil
	})

	if err != nil {
		return model.Order{}, err
	}
	return out, nil
}

type ListMyOrdersInput struct {
	Page       int
	Limit      int
	Status     string
	SearchText string
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, buyer Actor, in ListMyOrdersInput) (OrderListOutput, error) {
	if buyer.UserID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.Page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	var out OrderListOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		items, total, err := r.Orders().List(ctx, repo.OrderListFilter{
			Page:       in.Page,
			Limit:      in.Limit,
			Status:     in.Status,
			SearchText: strings.TrimSpace(in.SearchText),
			BuyerID:    &buyer.UserID,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = OrderListOutput{Items: items, Total: total, Page: in.Page, Limit: in.Limit}
		return nil
	})

	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, buyer Actor, orderID int64) (model.Order, error) {
	if buyer.UserID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.BuyerID != buyer.UserID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		out = o
		return nil
	})

	if err != nil {
		return model.Order{}, err
	}
	return out, nil
}

// 買い手本人によるキャンセル。PENDING / PAYMENT_PENDING からだけ通る。
func (u *OrderUsecase) CancelMyOrder(ctx context.Context, buyer Actor, orderID int64) (model.Order, error) {
	if buyer.UserID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

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
		if o.BuyerID != buyer.UserID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		if err := smachine.Check(smachine.TransitionRequest{
			From:          o.Status,
			To:            model.OrderStatusCancelled,
			Role:          model.RoleBuyer,
			IsOwner:       true,
			PaymentStatus: o.PaymentStatus,
		}); err != nil {
			return transitionError(err)
		}

		//期待ステータス付きで書く。先に承認が入っていたら409。
		now := time.Now()
		err = r.Orders().UpdateStatusIfCurrent(ctx, orderID, o.Status, model.OrderStatusCancelled, repo.OrderTransitionPatch{
			CancelledAt: &now,
		})
		if err == repo.ErrConflict {
			return NewHTTPError(http.StatusConflict, "order status changed, refresh and retry")
		}
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//在庫戻し
		if err := r.Products().IncreaseStock(ctx, o.ProductID, o.Quantity); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.TrackingEvents().DemoteCurrent(ctx, orderID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if _, err := r.TrackingEvents().Append(ctx, model.TrackingEvent{
			OrderID:    orderID,
			Step:       "Order Cancelled",
			StatusTag:  model.TrackingTagCompleted,
			Note:       "Cancelled by buyer",
			Icon:       "cancel",
			OccurredAt: now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  buyer.UserID,
			Action:       model.AuditActionCancelOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   `{"status":"` + string(o.Status) + `"}`,
			AfterJSON:    `{"status":"` + string(model.OrderStatusCancelled) + `"}`,
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		from = o.Status
		o.Status = model.OrderStatusCancelled
		o.CancelledAt = &now
		out = o
		return nil
	})

	if err != nil {
		return model.Order{}, err
	}

	//イベントはベストエフォート（失敗しても注文は確定済み）
	if u.publisher != nil {
		_ = u.publisher.PublishStatusChanged(ctx, orderID, from, model.OrderStatusCancelled, buyer.UserID, model.RoleBuyer)
	}
	return out, nil
}

// 注文と追跡タイムラインをまとめて返す。所有者かスタッフだけ見られる。
func (u *OrderUsecase) TrackOrder(ctx context.Context, actor Actor, orderID int64) (TrackOrderOutput, error) {
	if actor.UserID <= 0 {
		return TrackOrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return TrackOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out TrackOrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.BuyerID != actor.UserID && !actor.Role.IsStaff() {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		events, err := r.TrackingEvents().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = TrackOrderOutput{
			Order:       o,
			Tracking:    events,
			CurrentStep: model.CurrentTrackingStep(events),
		}
		return nil
	})

	if err != nil {
		return TrackOrderOutput{}, err
	}
	return out, nil
}
