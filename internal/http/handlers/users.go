package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/userhub/internal/apperr"
	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/http/respond"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserStore interface {
	FindByID(ctx context.Context, id string) (user.User, bool, error)
	Update(ctx context.Context, id string, in user.UpdateInput) (user.User, error)
	FindAll(ctx context.Context, f user.ListFilter) ([]user.Public, int64, error)
}

type UsersHandler struct {
	users UserStore
	log   *slog.Logger
}

func NewUsersHandler(users UserStore, log *slog.Logger) *UsersHandler {
	return &UsersHandler{users: users, log: log}
}

const msgUserNotFound = "User not found"

func (h *UsersHandler) GetProfile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		respond.Error(ctx, "Authentication required", http.StatusUnauthorized)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, found, err := h.users.FindByID(cctx, userID)
	if err != nil {
		h.internal(ctx, "Failed to get profile", err)
		return
	}

	if !found {
		respond.Error(ctx, msgUserNotFound, http.StatusNotFound)
		return
	}

	respond.Success(ctx, u.Public(), "", http.StatusOK)
}

func (h *UsersHandler) UpdateProfile(ctx *gin.Context) {
	req, ok := middlewares.Body[user.UpdateProfileRequest](ctx)
	if !ok {
		respond.Error(ctx, "Validation error: request body is required", http.StatusBadRequest)
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		respond.Error(ctx, "Authentication required", http.StatusUnauthorized)
		return
	}

	// a token signed by us with a non uuid subject is still a bad request
	if _, err := uuid.Parse(userID); err != nil {
		respond.Error(ctx, "Validation error: id must be a valid UUID", http.StatusBadRequest)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	updated, err := h.users.Update(cctx, userID, req.Input())
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			respond.Error(ctx, msgUserNotFound, http.StatusNotFound)
		case errors.Is(err, user.ErrEmailTaken):
			respond.Error(ctx, "User with this email already exists", http.StatusConflict)
		default:
			h.internal(ctx, "Failed to update profile", err)
		}
		return
	}

	respond.Success(ctx, updated.Public(), "Profile updated successfully", http.StatusOK)
}

func (h *UsersHandler) GetAllUsers(ctx *gin.Context) {
	q, _ := middlewares.Query[user.ListUsersQuery](ctx)
	filter := q.Filter()

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	items, total, err := h.users.FindAll(cctx, filter)
	if err != nil {
		h.internal(ctx, "Failed to get users", err)
		return
	}

	respond.Paginated(ctx, items, filter.Page, filter.Limit, total)
}

func (h *UsersHandler) GetUserByID(ctx *gin.Context) {
	params, ok := middlewares.URI[user.IDParam](ctx)
	if !ok {
		respond.Error(ctx, "Validation error: id must be a valid UUID", http.StatusBadRequest)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, found, err := h.users.FindByID(cctx, params.ID)
	if err != nil {
		h.internal(ctx, "Failed to get user", err)
		return
	}

	if !found {
		respond.Error(ctx, msgUserNotFound, http.StatusNotFound)
		return
	}

	respond.Success(ctx, u.Public(), "", http.StatusOK)
}

func (h *UsersHandler) internal(ctx *gin.Context, message string, err error) {
	h.log.ErrorContext(ctx.Request.Context(), message, "err", err, "path", ctx.FullPath())
	respond.Fail(ctx, apperr.Internal(message, err))
}
