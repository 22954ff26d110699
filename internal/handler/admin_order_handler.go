package handler

import (
	"net/http"
	"strconv"
	"time"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type SuccessResponse struct {
	Message string `json:"message"`
}

// MANAGER/ADMIN向けの注文API
type AdminOrderHandler struct {
	uc *usecase.AdminOrderUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc}
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type TrackingStepRequest struct {
	Step           string `json:"step"`
	StatusTag      string `json:"status_tag"`
	Location       string `json:"location"`
	Note           string `json:"note"`
	Icon           string `json:"icon"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	auth := middleware.AuthJWT(cfg)
	staff := middleware.StaffRoleGuard()

	e.GET("/orders", h.list, auth, staff)
	e.PATCH("/orders/status/:id", h.updateStatus, auth, staff)
	e.POST("/orders/:id/tracking", h.appendTracking, auth, staff)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	page := 1
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
		}
		page = p
	}

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	var buyerID *int64
	if v := c.QueryParam("buyer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid buyer_id"})
		}
		buyerID = &id
	}

	var fromPtr *time.Time
	if v := c.QueryParam("from"); v != "" {
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
		}
		fromPtr = &tm
	}

	var toPtr *time.Time
	if v := c.QueryParam("to"); v != "" {
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
		}
		toPtr = &tm
	}

	out, err := h.uc.List(c.Request().Context(), actor, repository.OrderListFilter{
		Page:       page,
		Limit:      limit,
		Status:     c.QueryParam("status"),
		SearchText: c.QueryParam("searchText"),
		BuyerID:    buyerID,
		From:       fromPtr,
		To:         toPtr,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.UpdateStatus(
		c.Request().Context(),
		actor,
		orderID,
		usecase.AdminUpdateOrderStatusInput{Status: req.Status, Reason: req.Reason},
	)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) appendTracking(c echo.Context) error {
	actor, ok := getActorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req TrackingStepRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.AppendTrackingStep(c.Request().Context(), actor, orderID, usecase.AppendTrackingInput{
		Step:           req.Step,
		StatusTag:      req.StatusTag,
		Location:       req.Location,
		Note:           req.Note,
		Icon:           req.Icon,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
