package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 決済ゲートウェイからの戻り（callback）を受ける
type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	//冪等なので同じsession_idで何度呼ばれてもよい
	e.PATCH("/payment-success", h.reconcile, middleware.AuthJWT(cfg))
}

func (h *PaymentHandler) reconcile(c echo.Context) error {
	if _, ok := getActorFromContext(c); !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.Reconcile(c.Request().Context(), c.QueryParam("session_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
