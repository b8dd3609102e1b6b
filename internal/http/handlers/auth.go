package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/userhub/internal/apperr"
	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/http/respond"
	"github.com/geocoder89/userhub/internal/security"
	"github.com/gin-gonic/gin"
)

const storeTimeout = 3 * time.Second

type UserReader interface {
	FindByEmail(ctx context.Context, email string) (user.User, bool, error)
	FindByID(ctx context.Context, id string) (user.User, bool, error)
	VerifyPassword(plain, hash string) bool
}

type UserWriter interface {
	Create(ctx context.Context, in user.CreateInput) (user.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID, email string, role user.Role) (string, error)
}

// AuthRecorder counts register/login outcomes. Optional.
type AuthRecorder interface {
	RecordAuth(action, result string)
}

type AuthHandler struct {
	users   UserReader
	writer  UserWriter
	tokens  TokenIssuer
	metrics AuthRecorder
	log     *slog.Logger
}

func NewAuthHandler(users UserReader, writer UserWriter, tokens TokenIssuer, metrics AuthRecorder, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:   users,
		writer:  writer,
		tokens:  tokens,
		metrics: metrics,
		log:     log,
	}
}

type AuthResponse struct {
	User  user.Public `json:"user"`
	Token string      `json:"token"`
}

const msgInvalidCredentials = "Invalid email or password"

func (h *AuthHandler) Register(ctx *gin.Context) {
	req, ok := middlewares.Body[user.RegisterRequest](ctx)
	if !ok {
		respond.Error(ctx, "Validation error: request body is required", http.StatusBadRequest)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	_, exists, err := h.users.FindByEmail(cctx, req.Email)
	if err != nil {
		h.fail(ctx, "register", apperr.Internal("Failed to register user", err))
		return
	}

	if exists {
		h.fail(ctx, "register", apperr.Duplicate("User with this email already exists"))
		return
	}

	u, err := h.writer.Create(cctx, req.Input())
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, user.ErrEmailTaken) {
			h.fail(ctx, "register", apperr.Duplicate("User with this email already exists"))
			return
		}

		h.fail(ctx, "register", apperr.Internal("Failed to register user", err))
		return
	}

	token, err := h.tokens.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		h.fail(ctx, "register", apperr.Internal("Failed to register user", err))
		return
	}

	h.record("register", "success")
	respond.Success(ctx, AuthResponse{User: u.Public(), Token: token}, "User registered successfully", http.StatusCreated)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	req, ok := middlewares.Body[user.LoginRequest](ctx)
	if !ok {
		respond.Error(ctx, "Validation error: request body is required", http.StatusBadRequest)
		return
	}

	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	found, exists, err := h.users.FindByEmail(cctx, req.Email)
	if err != nil {
		h.fail(ctx, "login", apperr.Internal("Failed to login", err))
		return
	}

	// unknown email and wrong password must look the same to the caller,
	// in body and in bcrypt work
	hash := found.PasswordHash
	if !exists {
		hash = security.DummyHash()
	}
	if !h.users.VerifyPassword(req.Password, hash) || !exists {
		h.fail(ctx, "login", apperr.Unauthorized(msgInvalidCredentials))
		return
	}

	token, err := h.tokens.GenerateAccessToken(found.ID, found.Email, found.Role)
	if err != nil {
		h.fail(ctx, "login", apperr.Internal("Failed to login", err))
		return
	}

	h.record("login", "success")
	respond.Success(ctx, AuthResponse{User: found.Public(), Token: token}, "Login successful", http.StatusOK)
}

func (h *AuthHandler) fail(ctx *gin.Context, action string, err *apperr.Error) {
	if err.Kind == apperr.KindInternal {
		h.log.ErrorContext(ctx.Request.Context(), action+" failed", "err", err.Err)
		h.record(action, "error")
	} else {
		h.record(action, "rejected")
	}

	respond.Fail(ctx, err)
}

func (h *AuthHandler) record(action, result string) {
	if h.metrics != nil {
		h.metrics.RecordAuth(action, result)
	}
}
