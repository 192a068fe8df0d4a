// Messenger webhook handlers.
//
// Meta calls GET once to verify the endpoint and POSTs every page event
// afterwards. Deliveries are acknowledged immediately; each messaging event
// is handed to an EventSubmitter that processes it off the request path.
package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messenger-bot/internal/http/middleware"
	"github.com/tbourn/go-messenger-bot/internal/messenger"
)

const (
	verifyFailed  = "Verification failed"
	eventReceived = "EVENT_RECEIVED"
)

// EventSubmitter accepts one messaging event for processing.
type EventSubmitter interface {
	Submit(ctx context.Context, pageID string, m messenger.Messaging)
}

// WebhookHandler serves the Messenger webhook endpoint.
type WebhookHandler struct {
	verifyToken string
	events      EventSubmitter
}

// NewWebhookHandler returns a handler that verifies subscriptions against
// verifyToken and submits deliveries to events.
func NewWebhookHandler(verifyToken string, events EventSubmitter) *WebhookHandler {
	return &WebhookHandler{verifyToken: verifyToken, events: events}
}

// Verify godoc
// @ID          verifyWebhook
// @Summary     Messenger subscription challenge
// @Description Echoes hub.challenge when hub.mode is "subscribe" and hub.verify_token matches.
// @Tags        Webhook
// @Produce     plain
// @Param       hub.mode          query  string  true  "Must be subscribe"
// @Param       hub.verify_token  query  string  true  "Configured verify token"
// @Param       hub.challenge     query  string  true  "Challenge to echo"
// @Success     200  {string} string "challenge"
// @Failure     403  {string} string "Verification failed"
// @Router      /webhook [get]
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || !h.tokenMatches(token) {
		middleware.LoggerFrom(c).Warn().Str("mode", mode).Msg("webhook verification failed")
		c.String(http.StatusForbidden, verifyFailed)
		return
	}
	c.String(http.StatusOK, challenge)
}

func (h *WebhookHandler) tokenMatches(token string) bool {
	if h.verifyToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) == 1
}

// Receive godoc
// @ID          receiveWebhook
// @Summary     Messenger event delivery
// @Description Accepts a page webhook delivery and queues every messaging event. Requires X-Hub-Signature-256 when an app secret is configured.
// @Tags        Webhook
// @Accept      json
// @Produce     plain
// @Param       X-Hub-Signature-256  header  string                  false "sha256=<hex HMAC of the body>"
// @Param       body                 body    messenger.WebhookEvent  true  "Webhook payload"
// @Success     200  {string} string "EVENT_RECEIVED"
// @Failure     400  {object} handlers.ErrorResponse "Malformed payload"
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid signature"
// @Failure     404  {object} handlers.ErrorResponse "Unsupported object"
// @Router      /webhook [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	var ev messenger.WebhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed webhook payload")
		return
	}
	if ev.Object != messenger.ObjectPage {
		fail(c, http.StatusNotFound, ErrCodeUnsupportedObject, `webhook object must be "page"`)
		return
	}

	ctx := c.Request.Context()
	n := 0
	for _, entry := range ev.Entry {
		for _, m := range entry.Messaging {
			h.events.Submit(ctx, entry.ID, m)
			n++
		}
	}
	middleware.LoggerFrom(c).Debug().Int("entries", len(ev.Entry)).Int("events", n).Msg("webhook delivery")

	c.String(http.StatusOK, eventReceived)
}
