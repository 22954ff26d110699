package server

import (
	"storefront/internal/config"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	h.Auth.RegisterRoutes(e)
	h.Orders.RegisterRoutes(e, cfg)
	h.AdminOrder.RegisterRoutes(e, cfg)
	h.Payment.RegisterRoutes(e, cfg)
}
