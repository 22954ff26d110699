package model

import "time"

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusPaymentPending OrderStatus = "PAYMENT_PENDING"
	OrderStatusApproved       OrderStatus = "APPROVED"
	OrderStatusRejected       OrderStatus = "REJECTED"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

// 終端ステータスか（以降の遷移なし）
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusRejected, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "UNPAID"
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentMethodOnline         PaymentMethod = "ONLINE"
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

type Order struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	BuyerID    int64  `gorm:"not null;index" json:"buyer_id"`
	BuyerEmail string `gorm:"type:varchar(255);not null" json:"buyer_email"`

	//商品スナップショット（注文後の商品編集は反映しない）
	ProductID           int64  `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   int64  `gorm:"not null" json:"unit_price_snapshot"`
	MOQSnapshot         int64  `gorm:"not null" json:"moq_snapshot"`
	Quantity            int64  `gorm:"not null" json:"quantity"`

	//作成時に計算して保存（後から再計算しない）
	TotalPrice int64 `gorm:"not null" json:"total_price"`

	//配送先
	FirstName     string `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName      string `gorm:"type:varchar(100);not null" json:"last_name"`
	ContactNumber string `gorm:"type:varchar(50);not null" json:"contact_number"`
	Address       string `gorm:"type:text;not null" json:"address"`
	Notes         string `gorm:"type:text" json:"notes"`

	PaymentMethod PaymentMethod `gorm:"type:varchar(20);not null" json:"payment_method"`
	Status        OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`

	//オンライン決済のセッション（ゲートウェイのcallbackで照合する）
	SessionID      *string `gorm:"type:varchar(255);uniqueIndex" json:"session_id,omitempty"`
	TransactionID  *string `gorm:"type:varchar(255)" json:"transaction_id,omitempty"`
	TrackingID     *string `gorm:"type:varchar(64)" json:"tracking_id,omitempty"`
	TrackingNumber *string `gorm:"type:varchar(100)" json:"tracking_number,omitempty"`
	Carrier        *string `gorm:"type:varchar(100)" json:"carrier,omitempty"`

	//REJECTEDのとき必須
	RejectionReason *string `gorm:"type:text" json:"rejection_reason,omitempty"`

	//各タイムスタンプは最初の遷移で1回だけ入れる
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}
