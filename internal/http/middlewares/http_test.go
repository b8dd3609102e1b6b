package middlewares_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/geocoder89/userhub/internal/apperr"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		credentials bool
		origin      string
		wantAllow   string
		wantCreds   string
	}{
		{name: "allow list match", origins: []string{"https://app.example.com"}, credentials: true, origin: "https://app.example.com", wantAllow: "https://app.example.com", wantCreds: "true"},
		{name: "allow list miss", origins: []string{"https://app.example.com"}, origin: "https://evil.example.com"},
		{name: "wildcard", origins: []string{"*"}, credentials: true, origin: "https://any.example.com", wantAllow: "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(middlewares.CORSMiddleware(tt.origins, tt.credentials))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

			w := doRequest(r, http.MethodGet, "/x", "", map[string]string{"Origin": tt.origin})
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Fatalf("allow origin = %q, want %q", got, tt.wantAllow)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
				t.Fatalf("allow credentials = %q, want %q", got, tt.wantCreds)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.CORSMiddleware([]string{"*"}, false))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := doRequest(r, http.MethodOptions, "/x", "", map[string]string{"Origin": "https://a.example.com"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", w.Code)
	}
}

func TestRequireJSON(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.RequireJSON())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := doRequest(r, http.MethodPost, "/x", `{"a":1}`, map[string]string{"Content-Type": "application/json; charset=utf-8"}); w.Code != http.StatusCreated {
		t.Fatalf("json with charset status = %d", w.Code)
	}

	w := doRequest(r, http.MethodPost, "/x", `a=1`, map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("form status = %d", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Error != "Content-Type must be application/json" {
		t.Fatalf("unexpected error %q", env.Error)
	}

	if w := doRequest(r, http.MethodGet, "/x", "", nil); w.Code != http.StatusOK {
		t.Fatalf("GET should not be checked, status = %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.SecurityHeaders(true))
	r.GET("/api/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/docs", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doRequest(r, http.MethodGet, "/api/x", "", nil)
	if w.Header().Get("X-Content-Type-Options") != "nosniff" || w.Header().Get("Strict-Transport-Security") == "" {
		t.Fatalf("missing headers: %v", w.Header())
	}
	if csp := w.Header().Get("Content-Security-Policy"); !strings.HasPrefix(csp, "default-src 'none'") {
		t.Fatalf("api csp = %q", csp)
	}

	w = doRequest(r, http.MethodGet, "/docs", "", nil)
	if csp := w.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "unpkg.com") {
		t.Fatalf("docs csp = %q", csp)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(middlewares.CtxRequestID)) })

	w := doRequest(r, http.MethodGet, "/x", "", map[string]string{"X-Request-Id": "abc-123"})
	if w.Header().Get("X-Request-Id") != "abc-123" || w.Body.String() != "abc-123" {
		t.Fatalf("caller id not kept: header=%q body=%q", w.Header().Get("X-Request-Id"), w.Body.String())
	}

	w = doRequest(r, http.MethodGet, "/x", "", nil)
	if len(w.Header().Get("X-Request-Id")) != 36 {
		t.Fatalf("expected a generated uuid, got %q", w.Header().Get("X-Request-Id"))
	}
}

func TestErrorBoundary(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.ErrorBoundary(discardLogger()))
	r.NoRoute(middlewares.NotFound())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom: secret detail") })
	r.GET("/recorded", func(c *gin.Context) { _ = c.Error(apperr.Forbidden("Insufficient permissions")) })
	r.GET("/unknown", func(c *gin.Context) { _ = c.Error(http.ErrBodyNotAllowed) })

	tests := []struct {
		path       string
		wantStatus int
		wantError  string
	}{
		{path: "/panic", wantStatus: http.StatusInternalServerError, wantError: "Internal server error"},
		{path: "/recorded", wantStatus: http.StatusForbidden, wantError: "Insufficient permissions"},
		{path: "/unknown", wantStatus: http.StatusInternalServerError, wantError: "Internal server error"},
		{path: "/nowhere?x=1", wantStatus: http.StatusNotFound, wantError: "Route /nowhere?x=1 not found"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := doRequest(r, http.MethodGet, tt.path, "", nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			env := decodeEnvelope(t, w)
			if env.Success || env.Error != tt.wantError {
				t.Fatalf("envelope = %+v", env)
			}
			if strings.Contains(w.Body.String(), "kaboom") {
				t.Fatalf("panic detail leaked: %s", w.Body.String())
			}
		})
	}
}
