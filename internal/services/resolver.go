// Package services – Resolver
//
// This file implements the three-tier reply resolver: the hand-authored
// keyword table first, then the LLM (when configured), then the static
// fallback from the table. Resolution never fails; the caller always gets
// something to send.
package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/tbourn/go-messenger-bot/internal/domain"
	"github.com/tbourn/go-messenger-bot/internal/lang"
	"github.com/tbourn/go-messenger-bot/internal/llm"
	"github.com/tbourn/go-messenger-bot/internal/observability"
	"github.com/tbourn/go-messenger-bot/internal/replies"
)

// Reply is the text chosen for a message and the tier that produced it.
type Reply struct {
	Text string
	Tier string
}

// Resolver picks a reply for customer text.
type Resolver struct {
	// Table is the keyword table; it also supplies greeting and fallback.
	Table *replies.Table
	// LLM is the generative tier; nil disables it.
	LLM llm.Generator
	// MaxReplyRunes clips LLM output (0 = Send API limit is left to the client).
	MaxReplyRunes int
	// MaxTextRunes bounds dry-run input (0 = unlimited).
	MaxTextRunes int
}

// Resolve returns the reply for text in the given language.
func (r *Resolver) Resolve(ctx context.Context, text string, tag language.Tag) Reply {
	rep := r.resolve(ctx, text, tag, false)
	observability.Replies.WithLabelValues(rep.Tier).Inc()
	return rep
}

func (r *Resolver) resolve(ctx context.Context, text string, tag language.Tag, dryRun bool) Reply {
	tr := otel.Tracer("services/Resolver")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.String("lang", lang.Code(tag)),
			attribute.Bool("dry_run", dryRun),
		),
	)
	defer span.End()

	rep := Reply{Text: r.Table.Fallback.For(tag), Tier: domain.SourceFallback}
	if m, ok := r.Table.Match(text); ok {
		rep = Reply{Text: m.Entry.Answer(tag), Tier: domain.SourceKeyword}
	} else if out, ok := r.generate(ctx, text, tag, dryRun); ok {
		rep = Reply{Text: out, Tier: domain.SourceLLM}
	}
	span.SetAttributes(attribute.String("reply.tier", rep.Tier))
	return rep
}

// Greeting returns the table greeting in the given language.
func (r *Resolver) Greeting(tag language.Tag) Reply {
	observability.Replies.WithLabelValues(domain.SourceGreeting).Inc()
	return Reply{Text: r.Table.Greeting.For(tag), Tier: domain.SourceGreeting}
}

// DryRun validates text, detects its language and resolves it for the admin
// API. Only DryRuns is counted; live reply and LLM metrics are untouched.
func (r *Resolver) DryRun(ctx context.Context, text string) (language.Tag, Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return language.Und, Reply{}, ErrEmptyText
	}
	if r.MaxTextRunes > 0 && utf8.RuneCountInString(text) > r.MaxTextRunes {
		return language.Und, Reply{}, ErrTextTooLong
	}
	tag := lang.Detect(text)
	rep := r.resolve(ctx, text, tag, true)
	observability.DryRuns.WithLabelValues(rep.Tier).Inc()
	return tag, rep, nil
}

func (r *Resolver) generate(ctx context.Context, text string, tag language.Tag, dryRun bool) (string, bool) {
	if r.LLM == nil {
		return "", false
	}
	start := time.Now()
	out, err := r.LLM.Generate(ctx, text, tag)
	if !dryRun {
		status := observability.Status(err)
		observability.LLMRequests.WithLabelValues(status).Inc()
		observability.LLMLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
		if err != nil {
			observability.Errors.WithLabelValues("llm").Inc()
		}
	}
	if err != nil {
		loggerFrom(ctx).Warn().Err(err).Str("text", preview(text)).Msg("llm tier failed, using fallback")
		return "", false
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", false
	}
	if r.MaxReplyRunes > 0 && utf8.RuneCountInString(out) > r.MaxReplyRunes {
		out = string([]rune(out)[:r.MaxReplyRunes])
	}
	return out, true
}
