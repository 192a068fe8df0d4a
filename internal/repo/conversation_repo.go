// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// persistence and query composition.
//
// Error semantics:
//   - When a conversation is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - UpsertConversation(ctx, db, senderID, language, at) -> *domain.Conversation, error
//     Creates the sender's conversation or refreshes its language and
//     last-message time.
//
//   - GetConversationBySender(ctx, db, senderID) -> *domain.Conversation, error
//     Fetches the conversation for a PSID, or ErrNotFound if missing.
//
//   - CountConversations(ctx, db) -> (int64, error)
//
//   - ListConversationsPage(ctx, db, offset, limit) -> []domain.Conversation, error
//     Returns a page of conversations, most recently active first.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-messenger-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertConversation inserts a conversation for senderID or, when one
// already exists, updates its language and last-message time. The stored
// row is returned.
func UpsertConversation(ctx context.Context, db *gorm.DB, senderID, language string, at time.Time) (*domain.Conversation, error) {
	if senderID == "" {
		return nil, errors.New("sender id is required")
	}
	at = at.UTC()
	c := &domain.Conversation{
		ID:            uuid.NewString(),
		SenderID:      senderID,
		Language:      language,
		LastMessageAt: at,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sender_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"language", "last_message_at", "updated_at"}),
	}).Create(c).Error
	if err != nil {
		return nil, err
	}
	return GetConversationBySender(ctx, db, senderID)
}

// GetConversationBySender fetches the conversation for senderID. If the
// record does not exist, it returns ErrNotFound.
func GetConversationBySender(ctx context.Context, db *gorm.DB, senderID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountConversations returns the total number of conversations.
func CountConversations(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Count(&total).Error
	return total, err
}

// ListConversationsPage returns a paginated slice of conversations ordered
// by last activity descending. The caller computes offset and limit.
func ListConversationsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Order("last_message_at desc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
