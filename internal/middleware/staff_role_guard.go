package middleware

import (
	"net/http"

	"storefront/internal/domain/model"

	"github.com/labstack/echo/v4"
)

//contextに入っているroleがMANAGERかADMINかを確認します。

func StaffRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawRole := c.Get(CtxUserRoleKey)
			role, ok := rawRole.(string)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//BUYERは拒否、MANAGER/ADMINだけ許可
			if !model.Role(role).IsStaff() {
				return c.JSON(http.StatusForbidden, errorJSON("staff only"))
			}

			return next(c)
		}
	}
}
