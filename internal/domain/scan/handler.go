package scan

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	pipeline *Pipeline
}

func NewHandler(p *Pipeline) *Handler {
	return &Handler{pipeline: p}
}

func (h *Handler) RegisterRoutes(api *echo.Group, m ...echo.MiddlewareFunc) {
	api.POST("/scan", h.Scan, m...)
}

type scanRequest struct {
	Payload string `json:"payload"`
}

type scanResponse struct {
	Kind     string   `json:"kind"`
	Document Document `json:"document"`
}

func (h *Handler) Scan(c echo.Context) error {
	var req scanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doc, err := h.pipeline.Run(c.Request().Context(), req.Payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, scanResponse{Kind: doc.Kind(), Document: doc})
}
