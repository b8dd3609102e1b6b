package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/userhub/internal/auth"
	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/db"
	apphttp "github.com/geocoder89/userhub/internal/http"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/http/respond"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/repo/memory"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const testSecret = "integration-secret-with-at-least-32-chars"

func testConfig() config.Config {
	return config.Config{
		Env:             config.EnvTest,
		APIPrefix:       "/api",
		ServiceName:     "userhub-test",
		Storage:         config.StorageMemory,
		JWTSecret:       testSecret,
		JWTExpiresIn:    time.Hour,
		RateLimitWindow: time.Minute,
		RateLimitMax:    10000,
		CORSOrigins:     []string{"*"},
		MaxBodyBytes:    1 << 20,
		AdminEmail:      "admin@example.com",
		AdminPassword:   "admin-password",
		AdminName:       "Test Admin",
	}
}

type testApp struct {
	srv   *httptest.Server
	users *memory.UsersRepo
	prom  *observability.Prom
}

func newTestApp(t *testing.T, cfg config.Config) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	users := memory.NewUsersRepo()

	if _, err := db.EnsureAdminUser(context.Background(), users, cfg); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	prom := observability.NewProm(prometheus.NewRegistry())

	router := apphttp.NewRouter(logger, cfg, apphttp.Deps{
		Users:   users,
		Tokens:  auth.NewManager(cfg.JWTSecret, cfg.JWTExpiresIn),
		Limiter: middlewares.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		Prom:    prom,
		Ping:    users.Ping,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testApp{srv: srv, users: users, prom: prom}
}

type response struct {
	status int
	raw    string
	env    respond.Envelope
}

func (a *testApp) do(t *testing.T, method, path string, body any, token string) response {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := a.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	out := response{status: res.StatusCode, raw: string(raw)}
	_ = json.Unmarshal(raw, &out.env)
	return out
}

type authData struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	Token string `json:"token"`
}

func dataAs[T any](t *testing.T, r response) T {
	t.Helper()

	var wrapper struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal([]byte(r.raw), &wrapper); err != nil {
		t.Fatalf("decode data: %v body=%s", err, r.raw)
	}
	return wrapper.Data
}

func (a *testApp) register(t *testing.T, email, password, name string) authData {
	t.Helper()

	r := a.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "password": password, "name": name,
	}, "")
	if r.status != http.StatusCreated {
		t.Fatalf("register %s: status %d body=%s", email, r.status, r.raw)
	}
	return dataAs[authData](t, r)
}

func (a *testApp) login(t *testing.T, email, password string) authData {
	t.Helper()

	r := a.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": password,
	}, "")
	if r.status != http.StatusOK {
		t.Fatalf("login %s: status %d body=%s", email, r.status, r.raw)
	}
	return dataAs[authData](t, r)
}
