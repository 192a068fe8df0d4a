// Package services – ConversationService
//
// This file implements ConversationService, which keeps a per-sender
// transcript of what the customer wrote and what the bot answered. The
// transcript backs the admin API and gives the team context before calling a
// lead back.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-messenger-bot/internal/domain"
	"github.com/tbourn/go-messenger-bot/internal/repo"
)

// ConversationRepo defines the repository contract required by
// ConversationService.
type ConversationRepo interface {
	UpsertConversation(ctx context.Context, db *gorm.DB, senderID, language string, at time.Time) (*domain.Conversation, error)
	GetConversationBySender(ctx context.Context, db *gorm.DB, senderID string) (*domain.Conversation, error)
	CountConversations(ctx context.Context, db *gorm.DB) (int64, error)
	ListConversationsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Conversation, error)
	CreateMessage(ctx context.Context, db *gorm.DB, conversationID, role, content, source, language string) (*domain.Message, error)
	CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error)
	ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error)
	MessagesStats(ctx context.Context, db *gorm.DB, conversationID string) (int64, *time.Time, error)
}

// RepoShim adapts the repository free functions to ConversationRepo.
type RepoShim struct{}

func (RepoShim) UpsertConversation(ctx context.Context, db *gorm.DB, senderID, language string, at time.Time) (*domain.Conversation, error) {
	return repo.UpsertConversation(ctx, db, senderID, language, at)
}

func (RepoShim) GetConversationBySender(ctx context.Context, db *gorm.DB, senderID string) (*domain.Conversation, error) {
	return repo.GetConversationBySender(ctx, db, senderID)
}

func (RepoShim) CountConversations(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountConversations(ctx, db)
}

func (RepoShim) ListConversationsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Conversation, error) {
	return repo.ListConversationsPage(ctx, db, offset, limit)
}

func (RepoShim) CreateMessage(ctx context.Context, db *gorm.DB, conversationID, role, content, source, language string) (*domain.Message, error) {
	return repo.CreateMessage(ctx, db, conversationID, role, content, source, language)
}

func (RepoShim) CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	return repo.CountMessages(ctx, db, conversationID)
}

func (RepoShim) ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	return repo.ListMessagesPage(ctx, db, conversationID, offset, limit)
}

func (RepoShim) MessagesStats(ctx context.Context, db *gorm.DB, conversationID string) (int64, *time.Time, error) {
	return repo.MessagesStats(ctx, db, conversationID)
}

// Turn is one message to append to a transcript.
type Turn struct {
	Role    string
	Content string
	Source  string
}

// ConversationService stores and lists per-sender transcripts.
type ConversationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the conversation repository used by this service.
	Repo ConversationRepo

	// MaxContentRunes caps stored message content (0 = unlimited).
	MaxContentRunes int

	now func() time.Time
}

// NewConversationService constructs a ConversationService with defaults.
func NewConversationService(db *gorm.DB, r ConversationRepo) *ConversationService {
	return &ConversationService{
		DB:              db,
		Repo:            r,
		MaxContentRunes: 4000,
		now:             time.Now,
	}
}

// Append stores a single message in senderID's conversation, creating the
// conversation on first contact.
func (s *ConversationService) Append(ctx context.Context, senderID, language, role, content, source string) (*domain.Message, error) {
	var out *domain.Message
	err := s.AppendTurns(ctx, senderID, language, func(m *domain.Message) { out = m }, Turn{Role: role, Content: content, Source: source})
	return out, err
}

// AppendTurns stores turns atomically, in order. onCreate, when non-nil, is
// called for every stored message.
func (s *ConversationService) AppendTurns(ctx context.Context, senderID, language string, onCreate func(*domain.Message), turns ...Turn) error {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "AppendTurns",
		trace.WithAttributes(
			attribute.String("sender.id", senderID),
			attribute.Int("turns", len(turns)),
		),
	)
	defer span.End()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := s.Repo.UpsertConversation(ctx, tx, senderID, language, s.clock())
		if err != nil {
			return err
		}
		for _, t := range turns {
			content := s.clip(strings.TrimSpace(t.Content))
			if content == "" {
				continue
			}
			m, err := s.Repo.CreateMessage(ctx, tx, conv.ID, t.Role, content, t.Source, language)
			if err != nil {
				return err
			}
			if onCreate != nil {
				onCreate(m)
			}
		}
		return nil
	})
}

// ListPage returns a page of conversations, most recently active first.
func (s *ConversationService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Conversation, int64, error) {
	offset, limit := pageBounds(page, pageSize)

	total, err := s.Repo.CountConversations(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}
	items, err := s.Repo.ListConversationsPage(ctx, s.DB, offset, limit)
	return items, total, err
}

// ListMessagesPage returns a page of senderID's transcript in chronological
// order, or ErrConversationNotFound.
func (s *ConversationService) ListMessagesPage(ctx context.Context, senderID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ListMessagesPage",
		trace.WithAttributes(
			attribute.String("sender.id", senderID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	conv, err := s.conversation(ctx, senderID)
	if err != nil {
		return nil, 0, err
	}
	offset, limit := pageBounds(page, pageSize)

	total, err := s.Repo.CountMessages(ctx, s.DB, conv.ID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := s.Repo.ListMessagesPage(ctx, s.DB, conv.ID, offset, limit)
	return items, total, err
}

// MessagesStats returns the message count and latest update time of
// senderID's transcript, for conditional GETs.
func (s *ConversationService) MessagesStats(ctx context.Context, senderID string) (int64, *time.Time, error) {
	conv, err := s.conversation(ctx, senderID)
	if err != nil {
		return 0, nil, err
	}
	return s.Repo.MessagesStats(ctx, s.DB, conv.ID)
}

func (s *ConversationService) conversation(ctx context.Context, senderID string) (*domain.Conversation, error) {
	conv, err := s.Repo.GetConversationBySender(ctx, s.DB, senderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) clip(content string) string {
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return string([]rune(content)[:s.MaxContentRunes])
	}
	return content
}

func (s *ConversationService) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
