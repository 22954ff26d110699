package payment

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/usecase"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

type stripeSessionAPI interface {
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Checkoutセッションを照会して支払い確定を確認する。
type StripeGateway struct {
	sessions stripeSessionAPI
}

// テストでは sessions を差し替える。
func NewStripeGateway(apiKey string, sessions stripeSessionAPI) (*StripeGateway, error) {
	if sessions == nil {
		apiKey = strings.TrimSpace(apiKey)
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		sc := client.New(apiKey, nil)
		sessions = sc.CheckoutSessions
	}
	return &StripeGateway{sessions: sessions}, nil
}

func (g *StripeGateway) ConfirmSession(ctx context.Context, sessionID string) (usecase.GatewayConfirmation, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := g.sessions.Get(sessionID, params)
	if err != nil {
		return usecase.GatewayConfirmation{}, err
	}

	conf := usecase.GatewayConfirmation{
		Paid:   sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Amount: sess.AmountTotal,
	}
	if sess.PaymentIntent != nil {
		conf.TransactionID = sess.PaymentIntent.ID
	}
	return conf, nil
}
