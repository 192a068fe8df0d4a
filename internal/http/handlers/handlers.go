// Admin API handlers.
//
// This file declares the service contracts consumed by the admin endpoints,
// the Handlers container, and the DTOs shared by list responses. The admin
// API is read-mostly: it lists captured leads and conversation transcripts,
// shows the active reply table, and offers a dry-run resolver for editing
// that table.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/tbourn/go-messenger-bot/internal/domain"
	"github.com/tbourn/go-messenger-bot/internal/replies"
	"github.com/tbourn/go-messenger-bot/internal/services"
	"github.com/tbourn/go-messenger-bot/internal/utils"
)

//
// Service contracts (context-aware)
//

// LeadService lists captured leads.
type LeadService interface {
	// ListPage returns leads newest first, optionally for one sender.
	ListPage(ctx context.Context, senderID string, page, pageSize int) ([]domain.Lead, int64, error)
	// Stats returns the lead count and newest timestamp for ETags.
	Stats(ctx context.Context, senderID string) (int64, *time.Time, error)
}

// ConversationService lists conversations and their transcripts.
type ConversationService interface {
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Conversation, int64, error)
	// ListMessagesPage returns services.ErrConversationNotFound for unknown senders.
	ListMessagesPage(ctx context.Context, senderID string, page, pageSize int) ([]domain.Message, int64, error)
	MessagesStats(ctx context.Context, senderID string) (int64, *time.Time, error)
}

// ReplyResolver resolves text without sending anything.
type ReplyResolver interface {
	DryRun(ctx context.Context, text string) (language.Tag, services.Reply, error)
}

//
// Handler wiring
//

// Handlers groups the admin API endpoints.
type Handlers struct {
	leads    LeadService
	convs    ConversationService
	resolver ReplyResolver
	table    *replies.Table
}

// New constructs Handlers bound to the given services and reply table.
func New(leads LeadService, convs ConversationService, resolver ReplyResolver, table *replies.Table) *Handlers {
	return &Handlers{leads: leads, convs: convs, resolver: resolver, table: table}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination reads page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(c.Query("page"), c.Query("page_size"))
}

// unixNano is 0 for nil so empty collections still get a stable ETag.
func unixNano(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixNano()
}
