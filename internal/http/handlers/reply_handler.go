package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messenger-bot/internal/lang"
	"github.com/tbourn/go-messenger-bot/internal/replies"
	"github.com/tbourn/go-messenger-bot/internal/services"
)

// RepliesResponse is the active reply table.
type RepliesResponse struct {
	Greeting replies.Localized `json:"greeting"`
	Fallback replies.Localized `json:"fallback"`
	Entries  []replies.Entry   `json:"entries"`
}

// ResolveRequest is the payload for a dry-run resolve.
type ResolveRequest struct {
	Text string `json:"text" binding:"required" example:"I need AC repair"`
}

// ResolveResponse reports how the bot would answer a message.
type ResolveResponse struct {
	Language string `json:"language" example:"en"`
	Tier     string `json:"tier" example:"keyword"`
	Reply    string `json:"reply"`
}

// GetReplies godoc
// @ID          getReplies
// @Summary     Show the active reply table
// @Description Returns the greeting, fallback and keyword entries in match order.
// @Tags        Replies
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200  {object} handlers.RepliesResponse
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid API key"
// @Router      /replies [get]
func (h *Handlers) GetReplies(c *gin.Context) {
	ok(c, http.StatusOK, RepliesResponse{
		Greeting: h.table.Greeting,
		Fallback: h.table.Fallback,
		Entries:  h.table.Entries,
	})
}

// ResolveReply godoc
// @ID          resolveReply
// @Summary     Dry-run the reply pipeline
// @Description Detects the language and resolves a reply (keyword, LLM, fallback). Nothing is sent and no lead is recorded.
// @Tags        Replies
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       body  body     handlers.ResolveRequest  true  "Text to resolve"
// @Success     200   {object} handlers.ResolveResponse
// @Failure     400   {object} handlers.ErrorResponse "Invalid body or text"
// @Failure     401   {object} handlers.ErrorResponse "Missing or invalid API key"
// @Failure     500   {object} handlers.ErrorResponse "Internal error"
// @Router      /replies/resolve [post]
func (h *Handlers) ResolveReply(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid body")
		return
	}

	tag, reply, err := h.resolver.DryRun(c.Request.Context(), req.Text)
	switch {
	case errors.Is(err, services.ErrEmptyText):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text is empty")
		return
	case errors.Is(err, services.ErrTextTooLong):
		fail(c, http.StatusBadRequest, ErrCodeTextTooLong, "text too long")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not resolve reply")
		return
	}

	ok(c, http.StatusOK, ResolveResponse{
		Language: lang.Code(tag),
		Tier:     reply.Tier,
		Reply:    reply.Text,
	})
}
