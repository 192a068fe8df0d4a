// Package services – LeadService
//
// This file implements LeadService, which records every inbound customer
// message as a lead. The database row is the source of truth; configured
// sinks (the spreadsheet) are written after it on a best-effort basis.
package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-messenger-bot/internal/domain"
	"github.com/tbourn/go-messenger-bot/internal/observability"
	"github.com/tbourn/go-messenger-bot/internal/repo"
)

// LeadSink receives a copy of every recorded lead.
type LeadSink interface {
	Name() string
	AppendLead(ctx context.Context, l domain.Lead) error
}

// LeadService persists leads and fans them out to sinks.
type LeadService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Sinks are written after the database, in order, even when the
	// database write fails.
	Sinks []LeadSink
	// SinkTimeout bounds each sink write (0 = inherit ctx).
	SinkTimeout time.Duration
}

// Record stores l and forwards it to every sink. A database failure does not
// stop the sinks and is returned once they have run; sink failures are
// logged and counted.
func (s *LeadService) Record(ctx context.Context, l *domain.Lead) error {
	tr := otel.Tracer("services/LeadService")
	ctx, span := tr.Start(ctx, "Record",
		trace.WithAttributes(
			attribute.String("sender.id", l.SenderID),
			attribute.String("reply.tier", l.ReplyTier),
		),
	)
	defer span.End()

	dbErr := repo.CreateLead(ctx, s.DB, l)
	observability.Leads.WithLabelValues("db", observability.Status(dbErr)).Inc()
	if dbErr != nil {
		span.RecordError(dbErr)
		loggerFrom(ctx).Error().Err(dbErr).
			Str("lead_id", l.ID).
			Msg("lead insert failed")
	}

	for _, sink := range s.Sinks {
		sctx, cancel := ctx, context.CancelFunc(func() {})
		if s.SinkTimeout > 0 {
			sctx, cancel = context.WithTimeout(ctx, s.SinkTimeout)
		}
		serr := sink.AppendLead(sctx, *l)
		cancel()
		observability.Leads.WithLabelValues(sink.Name(), observability.Status(serr)).Inc()
		if serr != nil {
			observability.Errors.WithLabelValues(sink.Name()).Inc()
			loggerFrom(ctx).Warn().Err(serr).
				Str("sink", sink.Name()).
				Str("lead_id", l.ID).
				Msg("lead sink write failed")
		}
	}
	return dbErr
}

// ListPage returns a page of leads, newest first, optionally for one sender.
func (s *LeadService) ListPage(ctx context.Context, senderID string, page, pageSize int) ([]domain.Lead, int64, error) {
	offset, limit := pageBounds(page, pageSize)

	total, err := repo.CountLeads(ctx, s.DB, senderID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Lead{}, 0, nil
	}
	items, err := repo.ListLeadsPage(ctx, s.DB, senderID, offset, limit)
	return items, total, err
}

// Stats returns the lead count and newest lead time for conditional GETs.
func (s *LeadService) Stats(ctx context.Context, senderID string) (int64, *time.Time, error) {
	return repo.LeadsStats(ctx, s.DB, senderID)
}
