package order

import (
	"errors"

	"storefront/internal/domain/model"
)

var (
	//遷移グラフに無いエッジ
	ErrInvalidTransition = errors.New("invalid transition")
	//ロールまたは所有者条件を満たさない
	ErrPermission = errors.New("permission denied")
	//REJECTEDには理由が必須
	ErrReasonRequired = errors.New("reason required")
	//支払い確定前は承認できない
	ErrPaymentNotSettled = errors.New("payment not settled")
)

// 1エッジ分の条件。
type edge struct {
	roles          []model.Role
	ownerOnly      bool
	requiresReason bool
	requiresPaid   bool
}

func (e edge) allowsRole(r model.Role) bool {
	for _, role := range e.roles {
		if role == r {
			return true
		}
	}
	return false
}

// 許可される遷移の表。ここに無いエッジは誰でも不可。
// PENDING -> PAYMENT_PENDING はオンライン決済選択時にシステムが自動で張るエッジで、
// 誰のリクエストでも通らない（rolesが空）。
var transitions = map[model.OrderStatus]map[model.OrderStatus]edge{
	model.OrderStatusPending: {
		model.OrderStatusPaymentPending: {},
		model.OrderStatusApproved: {
			roles: []model.Role{model.RoleManager, model.RoleAdmin},
		},
		model.OrderStatusRejected: {
			roles:          []model.Role{model.RoleManager, model.RoleAdmin},
			requiresReason: true,
		},
		model.OrderStatusCancelled: {
			roles:     []model.Role{model.RoleBuyer},
			ownerOnly: true,
		},
	},
	model.OrderStatusPaymentPending: {
		model.OrderStatusApproved: {
			roles:        []model.Role{model.RoleManager, model.RoleAdmin},
			requiresPaid: true,
		},
		model.OrderStatusCancelled: {
			roles:     []model.Role{model.RoleBuyer},
			ownerOnly: true,
		},
	},
	model.OrderStatusApproved: {
		model.OrderStatusDelivered: {
			roles: []model.Role{model.RoleManager, model.RoleAdmin},
		},
		//承認済みの強制キャンセルはADMINだけ
		model.OrderStatusCancelled: {
			roles: []model.Role{model.RoleAdmin},
		},
	},
	//REJECTED / DELIVERED / CANCELLED は終端
}

// 遷移リクエスト1件分の判定材料。
type TransitionRequest struct {
	From          model.OrderStatus
	To            model.OrderStatus
	Role          model.Role
	IsOwner       bool
	Reason        string
	PaymentStatus model.PaymentStatus
}

// Check は遷移リクエストを判定する。
// エッジの存在→ロール→所有者→理由→支払い の順で見る。
// 実際の書き込みはCAS（期待ステータス付きUPDATE）で行うので、ここは判定だけ。
func Check(req TransitionRequest) error {
	edges, ok := transitions[req.From]
	if !ok {
		return ErrInvalidTransition
	}
	e, ok := edges[req.To]
	if !ok {
		return ErrInvalidTransition
	}

	if !e.allowsRole(req.Role) {
		return ErrPermission
	}
	if e.ownerOnly && !req.IsOwner {
		return ErrPermission
	}
	if e.requiresReason && req.Reason == "" {
		return ErrReasonRequired
	}
	if e.requiresPaid && req.PaymentStatus != model.PaymentStatusPaid {
		return ErrPaymentNotSettled
	}
	return nil
}

// 買い手がキャンセルを出せるステータスか。
func BuyerCanCancelFrom(s model.OrderStatus) bool {
	return s == model.OrderStatusPending || s == model.OrderStatusPaymentPending
}
