package unit

import (
	"context"
	"testing"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// List tests
// =====================

func TestAdminOrderUsecase_List_BuyerForbidden(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	_, err := uc.List(context.Background(), buyerActor(7), repo.OrderListFilter{Page: 1, Limit: 20})
	assertHTTPStatus(t, err, 403)
	tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestAdminOrderUsecase_List_InvalidPage(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	_, err := uc.List(context.Background(), managerActor(2), repo.OrderListFilter{Page: 0, Limit: 20})
	assertErrContains(t, err, "invalid page")
}

func TestAdminOrderUsecase_List_Success(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	f := repo.OrderListFilter{Page: 1, Limit: 20, Status: string(model.OrderStatusPending)}

	ordersRepo.On("List", mock.Anything, f).Return([]model.Order{
		{ID: 10, Status: model.OrderStatusPending},
		{ID: 11, Status: model.OrderStatusPending},
	}, int64(2), nil)

	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	out, err := uc.List(ctx, managerActor(2), f)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(out.Items))
	assert.Equal(t, int64(2), out.Total)

	ordersRepo.AssertExpectations(t)
}

// =====================
// UpdateStatus tests
// =====================

func TestAdminOrderUsecase_UpdateStatus_InvalidStatus(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	_, err := uc.UpdateStatus(context.Background(), managerActor(2), 10,
		usecase.AdminUpdateOrderStatusInput{Status: "SHIPPED"})
	assertErrContains(t, err, "invalid status")
}

func TestAdminOrderUsecase_UpdateStatus_BuyerForbidden(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, Status: model.OrderStatusPending,
	}, nil)

	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	_, err := uc.UpdateStatus(ctx, buyerActor(7), 10,
		usecase.AdminUpdateOrderStatusInput{Status: string(model.OrderStatusApproved)})
	assertHTTPStatus(t, err, 403)
	assertErrContains(t, err, "forbidden")
}

func TestAdminOrderUsecase_UpdateStatus_Approve_SetsApprovedAt(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	trackingRepo := new(TrackingRepoMock)
	auditRepo := new(AuditRepoMock)
	publisher := new(PublisherMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, tracking: trackingRepo, audit: auditRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, BuyerID: 7, Status: model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusUnpaid,
	}, nil)
	ordersRepo.On("UpdateStatusIfCurrent",
		mock.Anything, int64(10), model.OrderStatusPending, model.OrderStatusApproved,
		mock.MatchedBy(func(p repo.OrderTransitionPatch) bool { return p.ApprovedAt != nil }),
	).Return(nil)
	trackingRepo.On("DemoteCurrent", mock.Anything, int64(10)).Return(nil)
	trackingRepo.On("Append", mock.Anything, mock.MatchedBy(func(e model.TrackingEvent) bool {
		return e.Step == "Order Confirmed" && e.StatusTag == model.TrackingTagCurrent
	})).Return(int64(2), nil)
	auditRepo.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionUpdateOrderStatus && l.ResourceID == 10
	})).Return(nil)
	publisher.On("PublishStatusChanged",
		mock.Anything, int64(10), model.OrderStatusPending, model.OrderStatusApproved, int64(2), model.RoleManager,
	).Return(nil)

	uc := usecase.NewAdminOrderUsecase(tx, publisher, nil)

	out, err := uc.UpdateStatus(ctx, managerActor(2), 10,
		usecase.AdminUpdateOrderStatusInput{Status: string(model.OrderStatusApproved)})
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusApproved, out.Status)
	assert.NotNil(t, out.ApprovedAt)

	ordersRepo.AssertExpectations(t)
	trackingRepo.AssertExpectations(t)
	auditRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestAdminOrderUsecase_UpdateStatus_RejectWithoutReason(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, Status: model.OrderStatusPending,
	}, nil)

	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	_, err := uc.UpdateStatus(ctx, managerActor(2), 10,
		usecase.AdminUpdateOrderStatusInput{Status: string(model.OrderStatusRejected), Reason: "   "})
	assertErrContains(t, err, "reason required")

	ordersRepo.AssertNotCalled(t, "UpdateStatusIfCurrent",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// 却下は在庫を戻し、理由を記録する
func TestAdminOrderUsecase_UpdateStatus_Reject_RestoresStock(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	productsRepo := new(ProductRepoMock)
	trackingRepo := new(TrackingRepoMock)
	auditRepo := new(AuditRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, products: productsRepo, tracking: trackingRepo, audit: auditRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, ProductID: 1, Quantity: 100, Status: model.OrderStatusPending,
	}, nil)
	ordersRepo.On("UpdateStatusIfCurrent",
		mock.Anything, int64(10), model.OrderStatusPending, model.OrderStatusRejected,
		mock.MatchedBy(func(p repo.OrderTransitionPatch) bool {
			return p.RejectedAt != nil && p.RejectionReason != nil && *p.RejectionReason == "out of production"
		}),
	).Return(nil)
	productsRepo.On("IncreaseStock", mock.Anything, int64(1), int64(100)).Return(nil)
	trackingRepo.On("DemoteCurrent", mock.Anything, int64(10)).Return(nil)
	trackingRepo.On("Append", mock.Anything, mock.MatchedBy(func(e model.TrackingEvent) bool {
		return e.Step == "Order Rejected" && e.Note == "out of production"
	})).Return(int64(2), nil)
	auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	out, err := uc.UpdateStatus(ctx, managerActor(2), 10,
		usecase.AdminUpdateOrderStatusInput{Status: string(model.OrderStatusRejected), Reason: "out of production"})
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusRejected, out.Status)

	productsRepo.AssertExpectations(t)
}

func TestAdminOrderUsecase_UpdateStatus_InvalidEdge(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, Status: model.OrderStatusPending,
	}, nil)

	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	//PENDINGから直接DELIVEREDへは飛べない
	_, err := uc.UpdateStatus(ctx, managerActor(2), 10,
		usecase.AdminUpdateOrderStatusInput{Status: string(model.OrderStatusDelivered)})
	assertErrContains(t, err, "invalid transition")
}

// 未決済のPAYMENT_PENDINGは承認できない
func TestAdminOrderUsecase_UpdateStatus_ApproveUnpaidPaymentPending(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, Status: model.OrderStatusPaymentPending,
		PaymentStatus: model.PaymentStatusPending,
	}, nil)

	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	_, err := uc.UpdateStatus(ctx, managerActor(2), 10,
		usecase.AdminUpdateOrderStatusInput{Status: string(model.OrderStatusApproved)})
	assertErrContains(t, err, "payment not settled")
}

// 承認後の取り消しはADMINだけ
func TestAdminOrderUsecase_UpdateStatus_ForceCancel_ManagerForbidden(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, Status: model.OrderStatusApproved,
	}, nil)

	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	_, err := uc.UpdateStatus(ctx, managerActor(2), 10,
		usecase.AdminUpdateOrderStatusInput{Status: string(model.OrderStatusCancelled)})
	assertHTTPStatus(t, err, 403)
}

func TestAdminOrderUsecase_UpdateStatus_ForceCancel_AdminOK(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	productsRepo := new(ProductRepoMock)
	trackingRepo := new(TrackingRepoMock)
	auditRepo := new(AuditRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, products: productsRepo, tracking: trackingRepo, audit: auditRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, ProductID: 1, Quantity: 100, Status: model.OrderStatusApproved,
	}, nil)
	ordersRepo.On("UpdateStatusIfCurrent",
		mock.Anything, int64(10), model.OrderStatusApproved, model.OrderStatusCancelled, mock.Anything,
	).Return(nil)
	productsRepo.On("IncreaseStock", mock.Anything, int64(1), int64(100)).Return(nil)
	trackingRepo.On("DemoteCurrent", mock.Anything, int64(10)).Return(nil)
	trackingRepo.On("Append", mock.Anything, mock.Anything).Return(int64(3), nil)
	auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	out, err := uc.UpdateStatus(ctx, adminActor(1), 10,
		usecase.AdminUpdateOrderStatusInput{Status: string(model.OrderStatusCancelled)})
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, out.Status)
}

// 先に別の操作が書いていたら409
func TestAdminOrderUsecase_UpdateStatus_Conflict(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	auditRepo := new(AuditRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, audit: auditRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, Status: model.OrderStatusPending,
	}, nil)
	ordersRepo.On("UpdateStatusIfCurrent",
		mock.Anything, int64(10), model.OrderStatusPending, model.OrderStatusApproved, mock.Anything,
	).Return(repo.ErrConflict)

	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	_, err := uc.UpdateStatus(ctx, managerActor(2), 10,
		usecase.AdminUpdateOrderStatusInput{Status: string(model.OrderStatusApproved)})
	assertHTTPStatus(t, err, 409)

	auditRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// =====================
// AppendTrackingStep tests
// =====================

func TestAdminOrderUsecase_AppendTrackingStep_BuyerForbidden(t *testing.T) {
	tx := new(TxManagerMock)
	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	_, err := uc.AppendTrackingStep(context.Background(), buyerActor(7), 10,
		usecase.AppendTrackingInput{Step: "Out for Delivery", StatusTag: string(model.TrackingTagCurrent)})
	assertHTTPStatus(t, err, 403)
}

func TestAdminOrderUsecase_AppendTrackingStep_ClosedOrder(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, Status: model.OrderStatusDelivered,
	}, nil)

	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	_, err := uc.AppendTrackingStep(ctx, managerActor(2), 10,
		usecase.AppendTrackingInput{Step: "Out for Delivery", StatusTag: string(model.TrackingTagCurrent)})
	assertErrContains(t, err, "order is closed")
}

// CURRENTの追記は既存CURRENTを落としてから。送り状番号も注文に入る。
func TestAdminOrderUsecase_AppendTrackingStep_Current_DemotesAndStoresCarrier(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	trackingRepo := new(TrackingRepoMock)
	auditRepo := new(AuditRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, tracking: trackingRepo, audit: auditRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, Status: model.OrderStatusApproved,
	}, nil)
	trackingRepo.On("DemoteCurrent", mock.Anything, int64(10)).Return(nil)
	trackingRepo.On("Append", mock.Anything, mock.MatchedBy(func(e model.TrackingEvent) bool {
		return e.Step == "Out for Delivery" && e.StatusTag == model.TrackingTagCurrent && e.Location == "Tokyo Hub"
	})).Return(int64(4), nil)
	ordersRepo.On("UpdateStatusIfCurrent",
		mock.Anything, int64(10), model.OrderStatusApproved, model.OrderStatusApproved,
		mock.MatchedBy(func(p repo.OrderTransitionPatch) bool {
			return p.TrackingNumber != nil && *p.TrackingNumber == "JP123456789" &&
				p.Carrier != nil && *p.Carrier == "Yamato"
		}),
	).Return(nil)
	auditRepo.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionAppendTracking
	})).Return(nil)
	trackingRepo.On("ListByOrderID", mock.Anything, int64(10)).Return([]model.TrackingEvent{
		{OrderID: 10, Step: "Order Placed", StatusTag: model.TrackingTagCompleted},
		{OrderID: 10, Step: "Order Confirmed", StatusTag: model.TrackingTagCompleted},
		{OrderID: 10, Step: "Out for Delivery", StatusTag: model.TrackingTagCurrent},
	}, nil)

	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	events, err := uc.AppendTrackingStep(ctx, managerActor(2), 10, usecase.AppendTrackingInput{
		Step:           "Out for Delivery",
		StatusTag:      string(model.TrackingTagCurrent),
		Location:       "Tokyo Hub",
		TrackingNumber: "JP123456789",
		Carrier:        "Yamato",
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, len(events))

	trackingRepo.AssertExpectations(t)
	ordersRepo.AssertExpectations(t)
}

// PENDINGタグの追記は既存CURRENTを触らない
func TestAdminOrderUsecase_AppendTrackingStep_PendingTagKeepsCurrent(t *testing.T) {
	ctx := context.Background()

	tx := new(TxManagerMock)
	ordersRepo := new(OrderRepoMock)
	trackingRepo := new(TrackingRepoMock)
	auditRepo := new(AuditRepoMock)

	tx.Repos = &TxReposMock{orders: ordersRepo, tracking: trackingRepo, audit: auditRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, Status: model.OrderStatusApproved,
	}, nil)
	trackingRepo.On("Append", mock.Anything, mock.Anything).Return(int64(4), nil)
	auditRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	trackingRepo.On("ListByOrderID", mock.Anything, int64(10)).Return([]model.TrackingEvent{}, nil)

	uc := usecase.NewAdminOrderUsecase(tx, nil, nil)

	_, err := uc.AppendTrackingStep(ctx, managerActor(2), 10, usecase.AppendTrackingInput{
		Step:      "Estimated Delivery",
		StatusTag: string(model.TrackingTagPending),
	})
	assert.NoError(t, err)

	trackingRepo.AssertNotCalled(t, "DemoteCurrent", mock.Anything, mock.Anything)
}
