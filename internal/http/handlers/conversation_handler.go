// Conversation HTTP handlers.
//
// This file exposes the stored transcripts:
//   - GET /conversations                        (list, most recent first)
//   - GET /conversations/{sender_id}/messages   (transcript, ETag support)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messenger-bot/internal/domain"
	"github.com/tbourn/go-messenger-bot/internal/services"
)

// ListConversationsResponse wraps a page of conversations.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// ListMessagesResponse contains a page of transcript messages.
type ListMessagesResponse struct {
	SenderID   string           `json:"sender_id"`
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations (paginated)
// @Description Returns one entry per Messenger sender, most recently active first.
// @Tags        Conversations
// @Produce     json
// @Security    ApiKeyAuth
//
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListConversationsResponse
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid API key"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.convs.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list conversations")
		return
	}
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination:    newPagination(page, pageSize, total),
	})
}

// ListConversationMessages godoc
// @ID          listConversationMessages
// @Summary     Get a sender's transcript
// @Description Returns the sender's messages in chronological order. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
// @Security    ApiKeyAuth
//
// @Param       sender_id      path    string  true  "Messenger page-scoped sender id"  example(6912345678901234)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid API key"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{sender_id}/messages [get]
func (h *Handlers) ListConversationMessages(c *gin.Context) {
	ctx := c.Request.Context()
	sender := strings.TrimSpace(c.Param("sender_id"))
	if sender == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sender_id required")
		return
	}
	page, pageSize := clampPagination(c)

	count, latest, err := h.convs.MessagesStats(ctx, sender)
	switch {
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		return
	case err == nil:
		etag := fmt.Sprintf(`W/"messages:%s:%d:%d:%d:%d"`, sender, page, pageSize, count, unixNano(latest))
		if notModified(c, etag) {
			return
		}
	}

	items, total, err := h.convs.ListMessagesPage(ctx, sender, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list messages")
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		SenderID:   sender,
		Messages:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}
