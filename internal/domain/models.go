// Package domain defines the persistence models for Messenger conversations,
// their message transcript, captured leads, and processed-key markers. These
// types are mapped with GORM and form the core data layer of the bot.
package domain

import (
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message sources. User messages come from typed text or a transcribed voice
// clip; assistant messages record which reply tier produced them.
const (
	SourceText     = "text"
	SourceAudio    = "audio"
	SourceKeyword  = "keyword"
	SourceLLM      = "llm"
	SourceFallback = "fallback"
	SourceGreeting = "greeting"
)

// Conversation is the thread between the page and one Messenger user,
// identified by the page-scoped sender id (PSID).
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - SenderID: PSID of the user; unique, one conversation per sender.
//   - Language: last detected language code ("bn" or "en").
//   - LastMessageAt: time of the most recent inbound message.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Conversation struct {
	ID            string    `json:"id"              gorm:"type:char(36);primaryKey"`
	SenderID      string    `json:"sender_id"       gorm:"type:varchar(64);not null;uniqueIndex:ux_conversation_sender"`
	Language      string    `json:"language"        gorm:"type:varchar(8);not null;default:'bn'"`
	LastMessageAt time.Time `json:"last_message_at" gorm:"index:idx_conversation_recent"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message is a single utterance within a conversation, authored either by
// the "user" or the "assistant" (the bot).
type Message struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conversation_msgs,priority:1"`
	Role           string    `json:"role"            gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content        string    `json:"content"         gorm:"type:text;not null"`
	Source         string    `json:"source"          gorm:"type:varchar(16);not null"`
	Language       string    `json:"language"        gorm:"type:varchar(8)"`
	CreatedAt      time.Time `json:"created_at"      gorm:"index:idx_conversation_msgs,priority:2"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Conversation is the parent thread. Messages are cascade-deleted
	// if their conversation is removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Lead is an append-only record of an inbound customer message. Rows are
// never updated or deleted by the application.
type Lead struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	SenderID    string    `json:"sender_id"    gorm:"type:varchar(64);not null;index:idx_lead_sender"`
	MessageText string    `json:"message_text" gorm:"type:text;not null"`
	Language    string    `json:"language"     gorm:"type:varchar(8)"`
	Source      string    `json:"source"       gorm:"type:varchar(16)"`
	ReplyTier   string    `json:"reply_tier"   gorm:"type:varchar(16)"`
	Timestamp   time.Time `json:"timestamp"    gorm:"not null;index:idx_lead_time"`
}

// TableName returns the database table name for Lead.
func (Lead) TableName() string { return "leads" }
