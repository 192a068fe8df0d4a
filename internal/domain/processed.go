package domain

import "time"

// ProcessedKey marks a key (a Messenger message id or a greeted sender) as
// already handled until ExpiresAt. It backs the durable dedupe store.
type ProcessedKey struct {
	Key       string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedKey) TableName() string { return "processed_keys" }
