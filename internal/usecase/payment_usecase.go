package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// ゲートウェイの支払い確認結果。
type GatewayConfirmation struct {
	Paid          bool
	TransactionID string
	Amount        int64
}

// 外部決済ゲートウェイの約束（Stripe実装をmainで注入）
type PaymentGateway interface {
	ConfirmSession(ctx context.Context, sessionID string) (GatewayConfirmation, error)
}

type PaymentUsecase struct {
	tx      repo.TransactionManager
	gateway PaymentGateway
	cache   repo.PaymentSessionCache
	logger  *zap.Logger
}

func NewPaymentUsecase(tx repo.TransactionManager, gateway PaymentGateway, cache repo.PaymentSessionCache, logger *zap.Logger) *PaymentUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentUsecase{tx: tx, gateway: gateway, cache: cache, logger: logger}
}

// callbackは同じsession_idで複数回届くことがある。
// すでに確定済みなら前回と同じ結果を返すだけで、二重課金も二重追記もしない。
func (u *PaymentUsecase) Reconcile(ctx context.Context, sessionID string) (repo.ReconcileResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return repo.ReconcileResult{}, NewHTTPError(http.StatusBadRequest, "session_id required")
	}

	//キャッシュに確定済みの結果があれば即答（正はDB側）
	if u.cache != nil {
		if cached, ok, err := u.cache.Get(ctx, sessionID); err == nil && ok {
			return cached, nil
		} else if err != nil {
			u.logger.Warn("payment session cache read failed", zap.Error(err))
		}
	}

	//対象注文の取得
	var o model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		found, err := r.Orders().FindBySessionID(ctx, sessionID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		o = found
		return nil
	})
	if err != nil {
		return repo.ReconcileResult{}, err
	}

	//すでにPAIDなら記録済みの結果をそのまま返す
	if o.PaymentStatus == model.PaymentStatusPaid {
		result := storedResult(o)
		u.cacheResult(ctx, sessionID, result)
		return result, nil
	}

	//ゲートウェイ確認。失敗時は何も書かないので同じsession_idで再試行できる。
	conf, err := u.gateway.ConfirmSession(ctx, sessionID)
	if err != nil {
		return repo.ReconcileResult{}, NewHTTPError(http.StatusBadGateway, "payment verification failed")
	}
	if !conf.Paid || conf.TransactionID == "" {
		return repo.ReconcileResult{}, NewHTTPError(http.StatusBadGateway, "payment not settled at gateway")
	}
	if conf.Amount > 0 && conf.Amount != o.TotalPrice {
		return repo.ReconcileResult{}, NewHTTPError(http.StatusBadGateway, "payment amount mismatch")
	}

	trackingID := ulid.Make().String()
	now := time.Now()

	var result repo.ReconcileResult

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//PAID以外のときだけ書く。負けたら先勝ちの結果を読み直す。
		err := r.Orders().MarkPaid(ctx, o.ID, repo.PaymentPatch{
			TransactionID: conf.TransactionID,
			TrackingID:    trackingID,
			PaidAt:        now,
		})
		if err == repo.ErrConflict {
			settled, ferr := r.Orders().FindByID(ctx, o.ID)
			if ferr != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			result = storedResult(settled)
			return nil
		}
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.TrackingEvents().DemoteCurrent(ctx, o.ID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if _, err := r.TrackingEvents().Append(ctx, model.TrackingEvent{
			OrderID:    o.ID,
			Step:       "Payment Confirmed",
			StatusTag:  model.TrackingTagCurrent,
			Note:       "Payment settled via gateway",
			Icon:       "payment",
			OccurredAt: now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  o.BuyerID,
			Action:       model.AuditActionReconcilePayment,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   `{"payment_status":"` + string(o.PaymentStatus) + `"}`,
			AfterJSON:    `{"payment_status":"` + string(model.PaymentStatusPaid) + `","transaction_id":"` + conf.TransactionID + `"}`,
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		result = repo.ReconcileResult{
			TransactionID: conf.TransactionID,
			TrackingID:    trackingID,
			Amount:        o.TotalPrice,
		}
		return nil
	})
	if err != nil {
		return repo.ReconcileResult{}, err
	}

	u.cacheResult(ctx, sessionID, result)
	return result, nil
}

func storedResult(o model.Order) repo.ReconcileResult {
	result := repo.ReconcileResult{Amount: o.TotalPrice}
	if o.TransactionID != nil {
		result.TransactionID = *o.TransactionID
	}
	if o.TrackingID != nil {
		result.TrackingID = *o.TrackingID
	}
	return result
}

func (u *PaymentUsecase) cacheResult(ctx context.Context, sessionID string, result repo.ReconcileResult) {
	if u.cache == nil {
		return
	}
	if err := u.cache.Set(ctx, sessionID, result); err != nil {
		u.logger.Warn("payment session cache write failed", zap.Error(err))
	}
}
