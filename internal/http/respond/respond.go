// Package respond is the only writer of HTTP response bodies. Every outcome,
// success or failure, leaves the service as an Envelope.
package respond

import (
	"math"
	"net/http"

	"github.com/geocoder89/userhub/internal/apperr"
	"github.com/gin-gonic/gin"
)

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type Envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Success writes {success:true,data,message}. A zero status means 200 and an
// empty message means "Success".
func Success(ctx *gin.Context, data any, message string, status int) {
	if status == 0 {
		status = http.StatusOK
	}
	if message == "" {
		message = "Success"
	}

	ctx.JSON(status, Envelope{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// Error writes {success:false,error} and aborts the chain. A zero status
// means 400.
func Error(ctx *gin.Context, message string, status int) {
	if status == 0 {
		status = http.StatusBadRequest
	}

	ctx.AbortWithStatusJSON(status, Envelope{
		Success: false,
		Error:   message,
	})
}

// Paginated always answers 200 with data plus page metadata.
func Paginated[T any](ctx *gin.Context, data []T, page, limit int, total int64) {
	if data == nil {
		data = []T{}
	}

	ctx.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    data,
		Pagination: &Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: TotalPages(total, limit),
		},
	})
}

func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

// Fail renders err through the taxonomy. Unknown errors become a generic 500
// so internals never reach the client.
func Fail(ctx *gin.Context, err error) {
	appErr := apperr.From(err)
	Error(ctx, appErr.Message, appErr.Status())
}
