// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the two request authenticators the bot needs:
//   - HubSignature checks the X-Hub-Signature-256 header Meta attaches to
//     every webhook delivery, using the app secret.
//   - APIKey guards the admin API with a static X-API-Key header.
//
// Both run before any handler reads the body or touches a service.
package middleware

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messenger-bot/internal/messenger"
)

// HeaderAPIKey carries the admin API key.
const HeaderAPIKey = "X-API-Key"

// ctxKeyAPIKeyID holds a short, non-reversible id of the presented API key.
const ctxKeyAPIKeyID = "auth.key_id"

// APIKeyID returns the id stashed by APIKey, if any.
func APIKeyID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyAPIKeyID)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// HubSignature verifies the webhook body against secret. An empty secret
// disables the check. The body is buffered and restored for the handler.
//
// Responses:
//   - 400 when the body cannot be read (including over-size bodies)
//   - 401 when the signature is missing or does not match
func HubSignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "bad_request",
				"message":    "unreadable body",
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if err := messenger.VerifySignature(body, c.GetHeader(messenger.SignatureHeader), secret); err != nil {
			msg := "invalid signature"
			if errors.Is(err, messenger.ErrMissingSignature) {
				msg = "missing signature"
			}
			LoggerFrom(c).Warn().Err(err).Msg("webhook signature rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "unauthorized",
				"message":    msg,
			})
			return
		}
		c.Next()
	}
}

// APIKey requires X-API-Key to equal key (constant-time). On success the
// key id is stashed for rate limiting and logs.
func APIKey(key string) gin.HandlerFunc {
	want := []byte(key)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(HeaderAPIKey))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "unauthorized",
				"message":    "missing or invalid API key",
			})
			return
		}
		sum := sha256.Sum256(got)
		c.Set(ctxKeyAPIKeyID, hex.EncodeToString(sum[:4]))
		c.Next()
	}
}
