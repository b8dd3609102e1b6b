package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/userhub/internal/auth"
	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/http/respond"
	"github.com/geocoder89/userhub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Make sure Gin does not spam the console during the test
func init() {
	gin.SetMode(gin.TestMode)
}

var errDB = errors.New("db unavailable")

// Fake repository implementing every store interface the handlers use.
type fakeUsersRepo struct {
	findByEmailFn func(ctx context.Context, email string) (user.User, bool, error)
	findByIDFn    func(ctx context.Context, id string) (user.User, bool, error)
	createFn      func(ctx context.Context, in user.CreateInput) (user.User, error)
	updateFn      func(ctx context.Context, id string, in user.UpdateInput) (user.User, error)
	findAllFn     func(ctx context.Context, f user.ListFilter) ([]user.Public, int64, error)

	verifiedHashes []string
}

func (f *fakeUsersRepo) FindByEmail(ctx context.Context, email string) (user.User, bool, error) {
	if f.findByEmailFn != nil {
		return f.findByEmailFn(ctx, email)
	}
	return user.User{}, false, nil
}

func (f *fakeUsersRepo) FindByID(ctx context.Context, id string) (user.User, bool, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return user.User{}, false, nil
}

func (f *fakeUsersRepo) Create(ctx context.Context, in user.CreateInput) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, in)
	}
	return user.User{}, nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, id string, in user.UpdateInput) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, in)
	}
	return user.User{}, nil
}

func (f *fakeUsersRepo) FindAll(ctx context.Context, filter user.ListFilter) ([]user.Public, int64, error) {
	if f.findAllFn != nil {
		return f.findAllFn(ctx, filter)
	}
	return nil, 0, nil
}

func (f *fakeUsersRepo) VerifyPassword(plain, hash string) bool {
	f.verifiedHashes = append(f.verifiedHashes, hash)
	return security.PasswordMatches(plain, hash)
}

type fakeTokens struct{}

func (fakeTokens) GenerateAccessToken(userID, email string, role user.Role) (string, error) {
	return "token-for-" + userID, nil
}

type fakeRecorder struct {
	calls []string
}

func (r *fakeRecorder) RecordAuth(action, result string) {
	r.calls = append(r.calls, action+":"+result)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleUser(t *testing.T, password string) user.User {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC()
	return user.User{
		ID:           uuid.NewString(),
		Email:        "sam@example.com",
		PasswordHash: hash,
		Name:         "Sam",
		Role:         user.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	return serveAs(r, method, path, body, "")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) respond.Envelope {
	t.Helper()

	var env respond.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope: %v body=%s", err, w.Body.String())
	}
	return env
}

const testSecret = "handlers-test-secret-with-32-plus-chars"

// bearer signs a token for id the same way the login flow does.
func bearer(t *testing.T, id string, role user.Role) string {
	t.Helper()

	tok, err := auth.NewManager(testSecret, time.Hour).GenerateAccessToken(id, "sam@example.com", role)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + tok
}

func requireAuth() gin.HandlerFunc {
	return middlewares.NewAuthMiddleware(auth.NewManager(testSecret, time.Hour)).RequireAuth()
}

func serveAs(r http.Handler, method, path, body, authorization string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
