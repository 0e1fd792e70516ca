package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/medchain/medchain/internal/session"
)

// HospitalIDKey is the echo context key holding the logged-in hospital.
const HospitalIDKey = "hospital_id"

// SessionSource reports the persisted session. *session.Manager satisfies it.
type SessionSource interface {
	Current(ctx context.Context) (*session.Session, error)
}

// RequireSession rejects the request unless a session is persisted. The
// check is local only; the remote service is never consulted.
func RequireSession(src SessionSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := src.Current(c.Request().Context())
			if err != nil {
				return err
			}
			c.Set(HospitalIDKey, sess.HospitalID)
			return next(c)
		}
	}
}
