package middlewares

import (
	"mime"
	"net/http"

	"github.com/geocoder89/userhub/internal/apperr"
	"github.com/geocoder89/userhub/internal/http/respond"
	"github.com/gin-gonic/gin"
)

// MaxBodyBytes caps how much of the body a handler can read. The validator
// reports an overflow as 413.
func MaxBodyBytes(max int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Body != nil {
			ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, max)
		}

		ctx.Next()
	}
}

// RequireJSON rejects write requests that carry a body in another format.
// Bodyless writes pass so the validator can report what is missing.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.ContentLength == 0 && c.GetHeader("Content-Type") == "" {
				break
			}
			// allow "application/json; charset=utf-8"
			mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
			if err != nil || mediaType != "application/json" {
				respond.Fail(c, apperr.New(apperr.KindUnsupportedMedia, "Content-Type must be application/json"))
				return
			}
		}
		c.Next()
	}
}
