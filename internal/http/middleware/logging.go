// Package middleware contains the Gin middleware shared by the webhook and
// the admin API.
//
// This file holds the request plumbing every other middleware relies on:
//
//   - RequestID() reuses or mints the X-Request-ID correlation id.
//   - Logger() is the compact access log used in debug mode; it logs the
//     route, client, masked query, API key id and outcome of every request.
//   - Recovery() turns panics into the JSON error envelope and counts them.
//   - LoggerFrom() hands handlers the request-scoped logger.
//
// Both access loggers bind their request-scoped zerolog.Logger twice: under
// the "logger" Gin key for handlers and on the request context for services
// (zerolog.Ctx). Install RequestID first so every line carries the id.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-messenger-bot/internal/observability"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	// maxQueryLogLength caps the raw query bytes written to a log line.
	maxQueryLogLength = 2048
)

// RequestID propagates an incoming X-Request-ID or generates a UUIDv4, and
// echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger emits one structured access line per request. Level follows the
// outcome: error for 5xx or recorded gin errors, warn for 4xx, info
// otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		l := bindLogger(c, log.With().
			Str("request_id", requestIDOf(c)).
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", clip(maskSecretsInQuery(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger())

		c.Next()

		keyID, _ := APIKeyID(c)
		ev := accessEvent(l, c).
			Str("api_key_id", keyID).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size())
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Msg("request")
	}
}

// Recovery logs a panic with its stack and, unless the handler already
// wrote a response, answers with the JSON 500 envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			observability.Errors.WithLabelValues("http").Inc()
			rid := requestIDOf(c)
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or a copy of the global
// logger when no access logger ran.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// bindLogger makes l the request logger for handlers and services.
func bindLogger(c *gin.Context, l zerolog.Logger) *zerolog.Logger {
	c.Set(loggerKey, &l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
	return &l
}

// accessEvent picks the log level for a finished request.
func accessEvent(l *zerolog.Logger, c *gin.Context) *zerolog.Event {
	switch status := c.Writer.Status(); {
	case len(c.Errors) > 0, status >= http.StatusInternalServerError:
		return l.Error()
	case status >= http.StatusBadRequest:
		return l.Warn()
	default:
		return l.Info()
	}
}

// routePath is the matched route pattern, or the raw path for 404s.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// requestIDOf reads the id set by RequestID, falling back to the headers.
func requestIDOf(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	if rid := c.Writer.Header().Get(requestIDHeader); rid != "" {
		return rid
	}
	return c.GetHeader(requestIDHeader)
}

var defaultQueryRE = maskQueryRE(defaultMaskQueryParams)

// maskSecretsInQuery hides the webhook verify token and access tokens.
func maskSecretsInQuery(q string) string {
	return defaultQueryRE.ReplaceAllString(q, "${1}${2}=[REDACTED]")
}

// clip shortens s to max bytes plus an ellipsis; max <= 0 keeps s whole.
func clip(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
