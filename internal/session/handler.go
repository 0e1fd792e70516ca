package session

import (
	"net/http"
	"sync/atomic"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	mgr        *Manager
	onboarding atomic.Bool
}

func NewHandler(mgr *Manager, startup Startup) *Handler {
	h := &Handler{mgr: mgr}
	h.onboarding.Store(startup.OnboardingSeen)
	return h
}

// RegisterRoutes wires the public routes on api and puts gate in front of
// the session-only one.
func (h *Handler) RegisterRoutes(api *echo.Group, gate echo.MiddlewareFunc) {
	api.GET("/startup", h.GetStartup)
	api.POST("/onboarding/complete", h.CompleteOnboarding)
	api.POST("/session/login", h.Login)
	api.POST("/session/logout", h.Logout)

	api.GET("/session", h.GetSession, gate)
}

type loginRequest struct {
	HospitalID string `json:"hospitalId"`
	PrivateKey string `json:"privateKey"`
}

type sessionResponse struct {
	HospitalID string `json:"hospitalId"`
	ExpiresAt  string `json:"expiresAt,omitempty"`
}

func toResponse(s *Session) sessionResponse {
	r := sessionResponse{HospitalID: s.HospitalID}
	if s.ExpiresAt != nil {
		r.ExpiresAt = s.ExpiresAt.Format("2006-01-02T15:04:05Z")
	}
	return r
}

func (h *Handler) GetStartup(c echo.Context) error {
	_, err := h.mgr.Current(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]bool{
		"onboardingSeen": h.onboarding.Load(),
		"loggedIn":       err == nil,
	})
}

func (h *Handler) CompleteOnboarding(c echo.Context) error {
	if err := h.mgr.Store().MarkOnboardingSeen(c.Request().Context()); err != nil {
		return err
	}
	h.onboarding.Store(true)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.mgr.Login(c.Request().Context(), req.HospitalID, req.PrivateKey)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(sess))
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.mgr.Logout(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.mgr.Current(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(sess))
}
