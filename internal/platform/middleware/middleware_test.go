package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medchain/medchain/internal/apperr"
	"github.com/medchain/medchain/internal/session"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get("request_id").(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid := c.Get("request_id").(string); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	RequestID()(handler)(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestLogger_PassesErrorThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	want := &apperr.CredentialInvalidError{}
	err := Logger(zerolog.Nop())(func(c echo.Context) error { return want })(c)
	if err != want {
		t.Errorf("expected handler error returned unchanged, got %v", err)
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := Recovery(zerolog.Nop())(func(c echo.Context) error { panic("test panic") })(c)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
}

func TestRecovery_LogsHospitalAndRequest(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "rid-7")

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := func(c echo.Context) error {
		c.Set(HospitalIDKey, "HOSP-1")
		panic("nil document")
	}
	if err := Recovery(logger)(handler)(c); err == nil {
		t.Fatal("expected error from recovered panic")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for k, want := range map[string]string{
		"hospital_id": "HOSP-1",
		"request_id":  "rid-7",
		"method":      http.MethodPost,
		"path":        "/api/v1/scan",
		"panic":       "nil document",
		"message":     "panic recovered",
	} {
		if entry[k] != want {
			t.Errorf("expected %s=%q, got %v", k, want, entry[k])
		}
	}
	if _, ok := entry["stack"]; !ok {
		t.Error("expected stack in log entry")
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := Recovery(zerolog.Nop())(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type stubSessions struct {
	sess *session.Session
	err  error
}

func (s stubSessions) Current(context.Context) (*session.Session, error) { return s.sess, s.err }

func TestRequireSession_Rejects(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	called := false
	err := RequireSession(stubSessions{err: apperr.ErrNoSession})(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	if !errors.Is(err, apperr.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
	if called {
		t.Error("handler must not run without a session")
	}
}

func TestRequireSession_Allows(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	src := stubSessions{sess: &session.Session{Token: "tok", HospitalID: "HOSP-1"}}
	err := RequireSession(src)(func(c echo.Context) error {
		if got := c.Get(HospitalIDKey); got != "HOSP-1" {
			t.Errorf("expected hospital in context, got %v", got)
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func runErrorHandler(err error) (*httptest.ResponseRecorder, ErrorBody) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	ErrorHandler(zerolog.Nop())(err, c)
	var body ErrorBody
	json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestErrorHandler_DomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.NewValidationError("npi"), http.StatusBadRequest},
		{apperr.ErrNoSession, http.StatusUnauthorized},
		{&apperr.CredentialInvalidError{}, http.StatusUnprocessableEntity},
		{&apperr.RecordNotFoundError{Kind: "patient", ID: "x"}, http.StatusNotFound},
		{&apperr.MedicationNotFoundError{ID: "x"}, http.StatusNotFound},
		{&apperr.EnrollmentError{Err: errors.New("down")}, http.StatusBadGateway},
		{&apperr.TransportError{Op: "verify-vc", Status: 500}, http.StatusBadGateway},
		{echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large"), http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		rec, body := runErrorHandler(tc.err)
		if rec.Code != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
		if body.Error == "" {
			t.Errorf("%v: expected error message in body", tc.err)
		}
	}
}

func TestErrorHandler_ValidationFields(t *testing.T) {
	_, body := runErrorHandler(apperr.NewValidationError("name", "dob"))
	if len(body.Fields) != 2 || body.Fields[0] != "name" {
		t.Errorf("expected fields in body, got %+v", body)
	}
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	rec, body := runErrorHandler(errors.New("pq: password authentication failed"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if body.Error != "internal server error" {
		t.Errorf("expected generic message, got %q", body.Error)
	}
}
