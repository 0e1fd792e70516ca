package hospital

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, m ...echo.MiddlewareFunc) {
	api.POST("/hospitals/register", h.Register, m...)
	api.POST("/hospitals/balance", h.Balance, m...)
}

func (h *Handler) Register(c echo.Context) error {
	var req Registration
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	hosp, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, hosp)
}

func (h *Handler) Balance(c echo.Context) error {
	var req BalanceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := h.svc.Balance(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}
