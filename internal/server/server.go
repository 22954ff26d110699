package server

import (
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth       *handler.AuthHandler
	Orders     *handler.OrderHandler
	AdminOrder *handler.AdminOrderHandler
	Payment    *handler.PaymentHandler
}

func New(cfg config.Config, logger *zap.Logger, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(requestLogger(logger))

	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	RegisterRoutes(e, cfg, h)
	return e
}

func Start(e *echo.Echo, addr string) error {
	return e.Start(addr)
}

// アクセスログ（zap）
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
			)
			return err
		}
	}
}
