// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Lead model.
//
// Leads are append-only: there is no update or delete helper.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-messenger-bot/internal/domain"
)

// CreateLead inserts a lead row. A zero Timestamp is replaced with the
// current UTC time; an empty ID gets a fresh UUID.
func CreateLead(ctx context.Context, db *gorm.DB, l *domain.Lead) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now()
	}
	l.Timestamp = l.Timestamp.UTC()
	return db.WithContext(ctx).Create(l).Error
}

// CountLeads returns the number of leads, optionally filtered by sender.
func CountLeads(ctx context.Context, db *gorm.DB, senderID string) (int64, error) {
	var total int64
	err := leadsScope(db.WithContext(ctx), senderID).
		Model(&domain.Lead{}).
		Count(&total).Error
	return total, err
}

// ListLeadsPage returns leads newest first, optionally filtered by sender.
func ListLeadsPage(ctx context.Context, db *gorm.DB, senderID string, offset, limit int) ([]domain.Lead, error) {
	var out []domain.Lead
	err := leadsScope(db.WithContext(ctx), senderID).
		Order("timestamp desc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func leadsScope(db *gorm.DB, senderID string) *gorm.DB {
	if senderID == "" {
		return db
	}
	return db.Where("sender_id = ?", senderID)
}
