package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
)

// CAS更新で期待ステータスと一致しなかった（先に誰かが書いた）
var ErrConflict = errors.New("conflict")

type OrderListFilter struct {
	Page       int
	Limit      int
	Status     string
	SearchText string
	//買い手スコープ（my-orders）のときだけ入れる
	BuyerID *int64
	From    *time.Time
	To      *time.Time
}

// ステータス遷移と一緒に書き込むフィールド。nilは触らない。
type OrderTransitionPatch struct {
	RejectionReason *string
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
	CancelledAt     *time.Time
	DeliveredAt     *time.Time
	TrackingNumber  *string
	Carrier         *string
}

// 決済確定で書き込むフィールド。
type PaymentPatch struct {
	TransactionID string
	TrackingID    string
	PaidAt        time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	//決済セッションIDから注文を引く
	FindBySessionID(ctx context.Context, sessionID string) (model.Order, error)
	Create(ctx context.Context, order model.Order) (int64, error)
	List(ctx context.Context, f OrderListFilter) ([]model.Order, int64, error)

	//現在ステータスがexpectedのときだけnextへ更新する（楽観ロック）。
	//一致しなければErrConflict、注文自体が無ければErrNotFound。
	UpdateStatusIfCurrent(ctx context.Context, orderID int64, expected model.OrderStatus, next model.OrderStatus, patch OrderTransitionPatch) error

	//payment_statusがPAID以外のときだけPAIDへ更新する。
	//すでにPAIDならErrConflict。
	MarkPaid(ctx context.Context, orderID int64, patch PaymentPatch) error
}
