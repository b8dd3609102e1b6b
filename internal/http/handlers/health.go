package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/userhub/internal/http/respond"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	ping func(ctx context.Context) error
	log  *slog.Logger
	now  func() time.Time
}

// create a new instance of the health handler; ping may be nil
func NewHealthHandler(ping func(ctx context.Context) error, log *slog.Logger) *HealthHandler {
	return &HealthHandler{
		ping: ping,
		log:  log,
		now:  time.Now,
	}
}

type healthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Health is liveness only and never touches the store.
func (h *HealthHandler) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, healthResponse{
		Success:   true,
		Message:   "Server is running",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	if h.ping != nil {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), 1*time.Second)
		defer cancel()

		if err := h.ping(cctx); err != nil {
			h.log.WarnContext(ctx.Request.Context(), "readiness check failed", "err", err)
			respond.Error(ctx, "Service not ready", http.StatusServiceUnavailable)
			return
		}
	}

	respond.Success(ctx, gin.H{"status": "ready"}, "Ready", http.StatusOK)
}
