package middlewares

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/geocoder89/userhub/internal/apperr"
	"github.com/geocoder89/userhub/internal/http/respond"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorBoundary is the outermost stage. It recovers panics and answers any
// error a handler recorded with c.Error but did not render itself. Either
// way the client gets an envelope and the details go to the log only.
func ErrorBoundary(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.ErrorContext(c.Request.Context(), "panic recovered",
				"panic", fmt.Sprint(rec),
				"path", c.Request.URL.Path,
				"request_id", c.GetString(CtxRequestID),
				"stack", string(debug.Stack()),
			)

			if !c.Writer.Written() {
				respond.Error(c, "Internal server error", http.StatusInternalServerError)
			}
			c.Abort()
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		appErr := classify(err)

		attrs := []any{"err", err, "status", appErr.Status(), "path", c.Request.URL.Path, "request_id", c.GetString(CtxRequestID)}
		if appErr.Kind == apperr.KindInternal {
			log.ErrorContext(c.Request.Context(), "request failed", attrs...)
		} else {
			log.DebugContext(c.Request.Context(), "request rejected", attrs...)
		}

		if !c.Writer.Written() {
			respond.Fail(c, appErr)
		}
	}
}

func classify(err error) *apperr.Error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return BindError(err, nil)
	}

	return apperr.Internal("Internal server error", err)
}

// NotFound answers unmatched routes.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		respond.Fail(c, apperr.NotFound("Route "+c.Request.URL.RequestURI()+" not found"))
	}
}

func MethodNotAllowed() gin.HandlerFunc {
	return func(c *gin.Context) {
		respond.Fail(c, apperr.New(apperr.KindMethodNotAllowed, "Method "+c.Request.Method+" not allowed on "+c.Request.URL.Path))
	}
}
