package unit

import (
	"context"
	"strings"
	"testing"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders   repo.OrderRepository
	tracking repo.TrackingEventRepository
	products repo.ProductRepository
	users    repo.UserRepository
	audit    repo.AuditLogRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository                 { return r.orders }
func (r *TxReposMock) TrackingEvents() repo.TrackingEventRepository { return r.tracking }
func (r *TxReposMock) Products() repo.ProductRepository             { return r.products }
func (r *TxReposMock) Users() repo.UserRepository                   { return r.users }
func (r *TxReposMock) AuditLogs() repo.AuditLogRepository           { return r.audit }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) FindBySessionID(ctx context.Context, sessionID string) (model.Order, error) {
	args := m.Called(ctx, sessionID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) List(ctx context.Context, f repo.OrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) UpdateStatusIfCurrent(ctx context.Context, orderID int64, expected model.OrderStatus, next model.OrderStatus, patch repo.OrderTransitionPatch) error {
	args := m.Called(ctx, orderID, expected, next, patch)
	return args.Error(0)
}

func (m *OrderRepoMock) MarkPaid(ctx context.Context, orderID int64, patch repo.PaymentPatch) error {
	args := m.Called(ctx, orderID, patch)
	return args.Error(0)
}

type TrackingRepoMock struct{ mock.Mock }

func (m *TrackingRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.TrackingEvent, error) {
	args := m.Called(ctx, orderID)
	events, _ := args.Get(0).([]model.TrackingEvent)
	return events, args.Error(1)
}

func (m *TrackingRepoMock) Append(ctx context.Context, event model.TrackingEvent) (int64, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TrackingRepoMock) DemoteCurrent(ctx context.Context, orderID int64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) FindByID(ctx context.Context, productID int64) (model.Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	args := m.Called(ctx, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *ProductRepoMock) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// =====================
// Collaborator mocks
// =====================

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) PublishStatusChanged(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus, actorUserID int64, actorRole model.Role) error {
	args := m.Called(ctx, orderID, from, to, actorUserID, actorRole)
	return args.Error(0)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) ConfirmSession(ctx context.Context, sessionID string) (usecase.GatewayConfirmation, error) {
	args := m.Called(ctx, sessionID)
	conf, _ := args.Get(0).(usecase.GatewayConfirmation)
	return conf, args.Error(1)
}

type SessionCacheMock struct{ mock.Mock }

func (m *SessionCacheMock) Get(ctx context.Context, sessionID string) (repo.ReconcileResult, bool, error) {
	args := m.Called(ctx, sessionID)
	result, _ := args.Get(0).(repo.ReconcileResult)
	return result, args.Bool(1), args.Error(2)
}

func (m *SessionCacheMock) Set(ctx context.Context, sessionID string, result repo.ReconcileResult) error {
	args := m.Called(ctx, sessionID, result)
	return args.Error(0)
}

// =====================
// Helpers
// =====================

// error contains（HTTPErrorの実装詳細に依存しない）
func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func assertHTTPStatus(t *testing.T, err error, wantStatus int) {
	t.Helper()
	if assert.Error(t, err) {
		he, ok := usecase.AsHTTPError(err)
		if assert.True(t, ok, "err=%v is not HTTPError", err) {
			assert.Equal(t, wantStatus, he.Status)
		}
	}
}

func buyerActor(id int64) usecase.Actor {
	return usecase.Actor{UserID: id, Email: "buyer@example.com", Role: model.RoleBuyer}
}

func managerActor(id int64) usecase.Actor {
	return usecase.Actor{UserID: id, Email: "manager@example.com", Role: model.RoleManager}
}

func adminActor(id int64) usecase.Actor {
	return usecase.Actor{UserID: id, Email: "admin@example.com", Role: model.RoleAdmin}
}
