package db

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler returns a handler for the health check endpoint. When p is
// nil the records live in memory and only the process itself is reported.
func HealthHandler(p Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if p == nil {
			return c.JSON(http.StatusOK, map[string]interface{}{
				"status":   "healthy",
				"database": "disabled",
			})
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status":   "unhealthy",
				"database": "unreachable",
				"error":    err.Error(),
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"database": "ok",
		})
	}
}
