package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type routeHandler struct {
	path string
}

func (h routeHandler) Register(e *echo.Echo) {
	e.GET(h.path, func(c echo.Context) error { return c.String(http.StatusOK, h.path) })
}

type panicHandler struct{}

func (panicHandler) Register(e *echo.Echo) {
	e.GET("/panic", func(c echo.Context) error { panic("boom") })
}

func TestNewServerRegistersHandlers(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(log, "", routeHandler{path: "/a"}, nil, routeHandler{path: "/b"}, panicHandler{})
	if srv.Addr() != DefaultAddr {
		t.Fatalf("expected default addr, got %q", srv.Addr())
	}

	for _, path := range []string{"/a", "/b"} {
		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != path {
			t.Fatalf("path=%s code=%d body=%q", path, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected recovered panic to yield 500, got %d", rec.Code)
	}
}
