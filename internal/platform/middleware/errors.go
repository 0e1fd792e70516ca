package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medchain/medchain/internal/apperr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// StatusFor returns the status code err will be answered with.
func StatusFor(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return apperr.HTTPStatus(err)
}

// ErrorHandler renders domain errors and echo.HTTPError alike as ErrorBody.
// Details of unexpected errors are logged, not returned.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := StatusFor(err)
		body := ErrorBody{Error: err.Error()}

		var he *echo.HTTPError
		var ve *apperr.ValidationError
		switch {
		case errors.As(err, &he):
			if msg, ok := he.Message.(string); ok {
				body.Error = msg
			} else {
				body.Error = http.StatusText(he.Code)
			}
		case errors.As(err, &ve):
			body.Fields = ve.Fields
		case status == http.StatusInternalServerError:
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Msg("unhandled error")
			body.Error = "internal server error"
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
