package patient

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medchain/medchain/internal/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the patient routes, each behind m. Callers pass the
// session gate.
func (h *Handler) RegisterRoutes(api *echo.Group, m ...echo.MiddlewareFunc) {
	api.POST("/patients", h.Enroll, m...)
	api.GET("/patients", h.FindByNPI, m...)
	api.GET("/patients/recent", h.Recent, m...)
	api.GET("/patients/:id", h.Get, m...)
	api.PATCH("/patients/:id", h.UpdateProfile, m...)
	api.POST("/patients/:id/entries", h.AddEntry, m...)
	api.POST("/emergency-access", h.EmergencyAccess, m...)
}

// forDisplay orders the history most recent first.
func forDisplay(rec *Record) *Record {
	out := *rec
	out.MedicalHistory = rec.HistoryNewestFirst()
	return &out
}

func (h *Handler) Enroll(c echo.Context) error {
	var req EnrollRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	id, err := h.svc.Enroll(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) FindByNPI(c echo.Context) error {
	id, err := h.svc.FindByNPI(c.Request().Context(), c.QueryParam("npi"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) Recent(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return &apperr.ValidationError{Fields: []string{"limit"}, Message: "limit must be a non-negative integer"}
		}
		limit = n
	}
	recs, err := h.svc.RecentEnrollments(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	out := make([]*Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, forDisplay(r))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Get(c echo.Context) error {
	rec, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, forDisplay(rec))
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var upd ProfileUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rec, err := h.svc.UpdateProfile(c.Request().Context(), c.Param("id"), &upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, forDisplay(rec))
}

func (h *Handler) AddEntry(c echo.Context) error {
	var ne NewEntry
	if err := c.Bind(&ne); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	entry, err := h.svc.AddEntry(c.Request().Context(), c.Param("id"), &ne)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, entry)
}

type emergencyRequest struct {
	NPI string `json:"npi"`
}

func (h *Handler) EmergencyAccess(c echo.Context) error {
	var req emergencyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	msg, err := h.svc.RequestEmergencyAccess(c.Request().Context(), req.NPI)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": msg})
}
