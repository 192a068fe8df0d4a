// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, a structured HTTP logger that
// scrubs secrets and obvious PII from request metadata before emitting logs.
//
// Webhook traffic is the main concern: Meta sends the verify token in the
// query string of the subscription challenge and an HMAC in
// X-Hub-Signature-256 on every delivery, and the admin API carries its key
// in X-API-Key. All of these are masked by default. Bodies are never logged.
//
// Usage:
//
//	r := gin.New()
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders: []string{"X-Forwarded-Authorization"},
//	}))
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
//
// MaskHeaders and MaskQueryParams name extra headers and query parameters
// whose values are replaced with "[REDACTED]". Header matching is
// case-insensitive. Both lists are merged with the built-in defaults.
type RedactOptions struct {
	MaskHeaders     []string
	MaskQueryParams []string
}

var (
	defaultMaskHeaders = []string{
		"Authorization",
		"Cookie",
		"Set-Cookie",
		HeaderAPIKey,
		"X-Hub-Signature-256",
		"X-Hub-Signature",
	}
	defaultMaskQueryParams = []string{
		"hub.verify_token",
		"access_token",
	}
)

// RedactingLogger returns a Gin middleware that logs HTTP requests and
// responses with sensitive values scrubbed.
//
// Behavior:
//   - Logs method, path, query string, status, response size, latency,
//     and request headers (with scrubbing applied).
//   - Masks configured query parameters, then redacts email addresses,
//     phone numbers, and UUID-like identifiers from the query and headers.
//   - Attaches a request-scoped logger (with request_id) to the Gin context
//     and to the request context, so handlers and services log with it.
//   - Logs at INFO by default, WARN for 4xx, and ERROR for 5xx.
//
// NOTE: redact UUIDs *before* phone numbers to avoid the phone pattern
// accidentally matching the digit/hyphen segments of a UUID.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	uuidRE := regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE := regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Bangladeshi mobiles, local or +880: "01712-345678", "+880 1712-345678".
	bdPhoneRE := regexp.MustCompile(`(?:\+?880[ .-]?0?|\b0)1[3-9]\d{2}[ .-]?\d{6}\b`)
	// Digits-only phone pattern (prevents matching hex characters from UUIDs).
	// Examples matched: "+1 212-555-1212", "212 555 1212", "(212) 555-1212".
	phoneRE := regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)

	redact := func(s string) string {
		if s == "" {
			return s
		}
		out := s
		// Order matters: IDs, then email, then phones (loosest last).
		out = uuidRE.ReplaceAllString(out, "[REDACTED:id]")
		out = emailRE.ReplaceAllString(out, "[REDACTED:email]")
		out = bdPhoneRE.ReplaceAllString(out, "[REDACTED:phone]")
		out = phoneRE.ReplaceAllString(out, "[REDACTED:phone]")
		return out
	}

	maskHeaders := make(map[string]struct{})
	for _, h := range append(append([]string{}, defaultMaskHeaders...), opts.MaskHeaders...) {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}
	queryRE := maskQueryRE(append(append([]string{}, defaultMaskQueryParams...), opts.MaskQueryParams...))

	return func(c *gin.Context) {
		start := time.Now()

		query := c.Request.URL.RawQuery
		if queryRE != nil {
			query = queryRE.ReplaceAllString(query, "${1}${2}=[REDACTED]")
		}
		query = redact(query)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redact(strings.Join(vv, ", "))
		}

		l := bindLogger(c, log.With().Str("request_id", requestIDOf(c)).Logger())

		c.Next()

		accessEvent(l, c).
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Str("query", clip(query, maxQueryLogLength)).
			Int("status", c.Writer.Status()).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

// maskQueryRE matches "name=value" pairs for any of names in a raw query.
func maskQueryRE(names []string) *regexp.Regexp {
	var quoted []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			quoted = append(quoted, regexp.QuoteMeta(n))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(^|&)(` + strings.Join(quoted, "|") + `)=[^&]*`)
}
