package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// 認証ミドルウェアが入れた値からActorを組み立てる
func getActorFromContext(c echo.Context) (usecase.Actor, bool) {
	userID, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || userID <= 0 {
		return usecase.Actor{}, false
	}
	role, ok := c.Get(middleware.CtxUserRoleKey).(string)
	if !ok || role == "" {
		return usecase.Actor{}, false
	}
	email, _ := c.Get(middleware.CtxUserEmailKey).(string)

	return usecase.Actor{
		UserID: userID,
		Email:  email,
		Role:   model.Role(role),
	}, true
}

// 買い手向けの注文API
type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type OrderCreateRequest struct {
	ProductID     int64  `json:"product_id"`
	Quantity      int64  `json:"quantity"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	ContactNumber string `json:"contact_number"`
	Address       string `json:"address"`
	Notes         string `json:"notes"`
	PaymentMethod string `json:"payment_method"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	auth := middleware.AuthJWT(cfg)

	e.POST("/orders", h.create, auth)
	e.GET("/my-orders", h.list, auth)
	e.GET("/my-orders/:id", h.detail, auth)
	e.PATCH("/my-orders/cancel/:id", h.cancel, auth)
	e.GET("/track-order/:id", h.track, auth)
}

func (h *OrderHandler) create(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.PlaceOrder(c.Request().Context(), actor, usecase.PlaceOrderInput{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		ContactNumber: req.ContactNumber,
		Address:       req.Address,
		Notes:         req.Notes,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	// page（default 1）
	page := 1
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
		}
		page = p
	}

	// limit（default 20）
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), actor, usecase.ListMyOrdersInput{
		Page:       page,
		Limit:      limit,
		Status:     c.QueryParam("status"),
		SearchText: c.QueryParam("searchText"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.GetMyOrderDetail(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.CancelMyOrder(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) track(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.TrackOrder(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
