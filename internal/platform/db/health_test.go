package db

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func runHealth(t *testing.T, p Pinger) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	if err := HealthHandler(p)(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec
}

func TestHealthHandler_NoDatabase(t *testing.T) {
	rec := runHealth(t, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"disabled"`) {
		t.Errorf("expected disabled database, got %s", rec.Body.String())
	}
}

func TestHealthHandler_Healthy(t *testing.T) {
	rec := runHealth(t, stubPinger{})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealthHandler_Unreachable(t *testing.T) {
	rec := runHealth(t, stubPinger{err: errors.New("connection refused")})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("expected error in body, got %s", rec.Body.String())
	}
}
