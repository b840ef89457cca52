package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	applogger "PanelSync/pkg/logger"

	"github.com/labstack/echo/v4"
)

func newEcho() *echo.Echo {
	e := echo.New()
	l := applogger.NewNop()
	e.Use(Recover(l), RequestLogging(l), Metrics(l, 0))
	e.Use(CORS(CORSConfig{AllowOrigins: []string{"https://app.example"}, AllowMethods: []string{"GET"}}))
	e.GET("/boom", func(echo.Context) error { panic("kaboom") })
	e.GET("/ok/:id", func(c echo.Context) error { return c.String(http.StatusOK, c.Param("id")) })
	return e
}

func TestRecoverReturns500(t *testing.T) {
	rec := httptest.NewRecorder()
	newEcho().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	e := newEcho()

	req := httptest.NewRequest(http.MethodGet, "/ok/1", nil)
	req.Header.Set(echo.HeaderOrigin, "https://app.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "https://app.example" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ok/1", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "" {
		t.Fatalf("foreign origin allowed: %q", got)
	}
	if rec.Body.String() != "1" {
		t.Fatalf("request not served: %q", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/ok/1", nil)
	req.Header.Set(echo.HeaderOrigin, "https://app.example")
	rec := httptest.NewRecorder()
	newEcho().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
}

func TestStatusClass(t *testing.T) {
	for code, want := range map[int]string{101: "1xx", 204: "2xx", 302: "3xx", 404: "4xx", 503: "5xx"} {
		if got := statusClass(code); got != want {
			t.Fatalf("statusClass(%d) = %s", code, got)
		}
	}
}
