// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides helpers for the ProcessedKey model that
// backs the durable dedupe store (message ids and greeted senders).
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-messenger-bot/internal/domain"
)

// ErrDuplicate indicates that a live (non-expired) record already exists
// for the given key.
var ErrDuplicate = errors.New("duplicate")

// InsertProcessedKey records key as processed until now+ttl. If a live row
// already exists, ErrDuplicate is returned. An expired row is replaced.
func InsertProcessedKey(ctx context.Context, db *gorm.DB, key string, ttl time.Duration, now time.Time) error {
	now = now.UTC()
	rec := &domain.ProcessedKey{
		Key:       key,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	// Take over an expired row in place; a live row is left untouched.
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"created_at": now,
			"expires_at": rec.ExpiresAt,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lt{Column: clause.Column{Table: "processed_keys", Name: "expires_at"}, Value: now},
		}},
	}).Create(rec)
	if err := res.Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// PurgeExpiredKeys deletes rows whose expiry is at or before now and returns
// how many were removed.
func PurgeExpiredKeys(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.ProcessedKey{})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
