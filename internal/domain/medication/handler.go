package medication

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
	api.POST("/medications/verify", h.Verify, m...)
}

type verifyRequest struct {
	Payload string `json:"payload"`
}

func (h *Handler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m, err := h.svc.VerifyScanned(c.Request().Context(), req.Payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}
