package repository

import "context"

// 決済確定の結果。同じセッションには常に同じ値を返す。
type ReconcileResult struct {
	TransactionID string `json:"transaction_id"`
	TrackingID    string `json:"tracking_id"`
	Amount        int64  `json:"amount"`
}

// callbackの重複に即答するためのキャッシュ。正はDB側。
type PaymentSessionCache interface {
	Get(ctx context.Context, sessionID string) (ReconcileResult, bool, error)
	Set(ctx context.Context, sessionID string, result ReconcileResult) error
}
