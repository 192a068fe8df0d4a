// Package services – BotService
//
// This file implements BotService, which handles one Messenger messaging
// event end to end: filtering, redelivery suppression, voice transcription,
// language detection, greeting, reply resolution, lead capture, transcript
// storage, and the outbound send.
//
// Every step except the final send is best effort. Failures are logged and
// counted so a broken spreadsheet or LLM never stops a customer from getting
// an answer.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/tbourn/go-messenger-bot/internal/dedupe"
	"github.com/tbourn/go-messenger-bot/internal/domain"
	"github.com/tbourn/go-messenger-bot/internal/lang"
	"github.com/tbourn/go-messenger-bot/internal/messenger"
	"github.com/tbourn/go-messenger-bot/internal/observability"
	"github.com/tbourn/go-messenger-bot/internal/speech"
)

// Sender delivers text and sender actions to a Messenger user.
type Sender interface {
	SendText(ctx context.Context, recipientID, text string) error
	SendAction(ctx context.Context, recipientID, action string) error
}

// BotService handles webhook messaging events.
type BotService struct {
	Resolver *Resolver
	Sender   Sender

	// Transcriber turns voice clips into text; nil leaves audio unanswered
	// apart from the greeting.
	Transcriber speech.Transcriber
	// Leads records every answered customer message; nil disables it.
	Leads *LeadService
	// Conversations stores the transcript; nil disables it.
	Conversations *ConversationService
	// Dedupe backs the processed-message and greeted-user sets; nil
	// disables both.
	Dedupe dedupe.Store

	MessageTTL    time.Duration
	GreetingTTL   time.Duration
	GreetNewUsers bool

	now func() time.Time
}

// HandleMessaging processes a single messaging event from pageID's entry.
// The returned error reports only a failed reply send.
func (s *BotService) HandleMessaging(ctx context.Context, pageID string, m messenger.Messaging) error {
	kind := m.Kind()
	observability.Events.WithLabelValues(kind).Inc()

	if !m.IsUserMessage() && !m.IsPostback() {
		return nil
	}
	senderID := m.Sender.ID
	if senderID == "" || senderID == pageID {
		return nil
	}

	tr := otel.Tracer("services/BotService")
	ctx, span := tr.Start(ctx, "HandleMessaging",
		trace.WithAttributes(
			attribute.String("page.id", pageID),
			attribute.String("sender.id", senderID),
			attribute.String("event.kind", kind),
		),
	)
	defer span.End()

	l := loggerFrom(ctx).With().Str("sender_id", senderID).Str("mid", m.MID()).Logger()
	ctx = l.WithContext(ctx)

	if mid := m.MID(); mid != "" && !s.markNew(ctx, "message", dedupe.MessageKey(mid), s.MessageTTL, true) {
		span.SetAttributes(attribute.Bool("dedupe.hit", true))
		return nil
	}

	if m.IsPostback() {
		l.Info().Str("payload", m.Postback.Payload).Msg("postback")
		s.markNew(ctx, "greeting", dedupe.GreetingKey(senderID), s.GreetingTTL, false)
		return s.greet(ctx, span, senderID, language.Bengali)
	}

	text, source := s.extractText(ctx, m)
	if text == "" {
		s.markNew(ctx, "greeting", dedupe.GreetingKey(senderID), s.GreetingTTL, false)
		return s.greet(ctx, span, senderID, language.Bengali)
	}

	tag := lang.Detect(text)
	code := lang.Code(tag)
	span.SetAttributes(attribute.String("lang", code))

	if s.GreetNewUsers && s.markNew(ctx, "greeting", dedupe.GreetingKey(senderID), s.GreetingTTL, false) {
		if err := s.greet(ctx, span, senderID, tag); err != nil {
			l.Warn().Err(err).Msg("greeting send failed")
		}
	}

	s.action(ctx, senderID, messenger.ActionMarkSeen)
	s.action(ctx, senderID, messenger.ActionTypingOn)

	reply := s.Resolver.Resolve(ctx, text, tag)
	span.SetAttributes(attribute.String("reply.tier", reply.Tier))

	at := s.clock().UTC()
	if s.Leads != nil {
		lead := &domain.Lead{
			SenderID:    senderID,
			MessageText: text,
			Language:    code,
			Source:      source,
			ReplyTier:   reply.Tier,
			Timestamp:   at,
		}
		if err := s.Leads.Record(ctx, lead); err != nil {
			observability.Errors.WithLabelValues("leads").Inc()
			l.Error().Err(err).Msg("lead record failed")
		}
	}
	s.record(ctx, senderID, code,
		Turn{Role: domain.RoleUser, Content: text, Source: source},
		Turn{Role: domain.RoleAssistant, Content: reply.Text, Source: reply.Tier},
	)

	l.Info().
		Str("lang", code).
		Str("tier", reply.Tier).
		Str("text", preview(text)).
		Msg("reply resolved")

	if err := s.send(ctx, senderID, reply.Text); err != nil {
		s.action(ctx, senderID, messenger.ActionTypingOff)
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// extractText returns the message text, or the transcript when the first
// attachment is a voice clip and a transcriber is configured.
func (s *BotService) extractText(ctx context.Context, m messenger.Messaging) (string, string) {
	text := strings.TrimSpace(m.Message.Text)
	url, ok := m.AudioURL()
	if !ok || s.Transcriber == nil {
		return text, domain.SourceText
	}

	transcript, err := s.Transcriber.Transcribe(ctx, url)
	observability.Transcriptions.WithLabelValues(observability.Status(err)).Inc()
	if err != nil {
		observability.Errors.WithLabelValues("speech").Inc()
		loggerFrom(ctx).Warn().Err(err).Msg("transcription failed")
		return "", domain.SourceAudio
	}
	return strings.TrimSpace(transcript), domain.SourceAudio
}

// greet sends the greeting in tag and stores it in the transcript.
func (s *BotService) greet(ctx context.Context, span trace.Span, senderID string, tag language.Tag) error {
	g := s.Resolver.Greeting(tag)
	span.AddEvent("greeting")
	s.record(ctx, senderID, lang.Code(tag), Turn{Role: domain.RoleAssistant, Content: g.Text, Source: g.Tier})
	if err := s.send(ctx, senderID, g.Text); err != nil {
		return fmt.Errorf("send greeting: %w", err)
	}
	return nil
}

// markNew reports whether key is new. Store errors resolve to failOpen.
func (s *BotService) markNew(ctx context.Context, set, key string, ttl time.Duration, failOpen bool) bool {
	if s.Dedupe == nil {
		return true
	}
	fresh, err := s.Dedupe.MarkIfNew(ctx, key, ttl)
	if err != nil {
		observability.Errors.WithLabelValues("dedupe").Inc()
		loggerFrom(ctx).Warn().Err(err).Str("set", set).Msg("dedupe store unavailable")
		return failOpen
	}
	if !fresh {
		observability.DedupeHits.WithLabelValues(set).Inc()
	}
	return fresh
}

func (s *BotService) record(ctx context.Context, senderID, code string, turns ...Turn) {
	if s.Conversations == nil {
		return
	}
	if err := s.Conversations.AppendTurns(ctx, senderID, code, nil, turns...); err != nil {
		observability.Errors.WithLabelValues("conversations").Inc()
		loggerFrom(ctx).Error().Err(err).Msg("transcript append failed")
	}
}

func (s *BotService) send(ctx context.Context, to, text string) error {
	err := s.Sender.SendText(ctx, to, text)
	observability.Sends.WithLabelValues("text", observability.Status(err)).Inc()
	if err != nil {
		observability.Errors.WithLabelValues("messenger").Inc()
	}
	return err
}

// action sends a sender action; failures are only logged at debug.
func (s *BotService) action(ctx context.Context, to, action string) {
	err := s.Sender.SendAction(ctx, to, action)
	observability.Sends.WithLabelValues("action", observability.Status(err)).Inc()
	if err != nil {
		loggerFrom(ctx).Debug().Err(err).Str("action", action).Msg("sender action failed")
	}
}

func (s *BotService) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
