package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GinMiddleware logs every HTTP request and propagates a request id through
// the request context and the X-Request-Id response header.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))

		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("request_id", requestID).
			Str("http.method", c.Request.Method).
			Str("http.route", c.FullPath()).
			Str("http.path", c.Request.URL.Path).
			Int("http.status", status).
			Str("remote_addr", c.ClientIP()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request completed")
	}
}
