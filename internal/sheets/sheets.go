// Package sheets appends captured leads to a Google Sheets spreadsheet so
// the team can follow up without access to the bot's database.
package sheets

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/tbourn/go-messenger-bot/internal/config"
	"github.com/tbourn/go-messenger-bot/internal/domain"
)

// Appender writes one row per lead.
type Appender struct {
	svc           *gsheets.Service
	spreadsheetID string
	rng           string
}

// NewAppender creates a Sheets client. Without explicit options the service
// account credentials file from config is used.
func NewAppender(ctx context.Context, cfg config.SheetsConfig, opts ...option.ClientOption) (*Appender, error) {
	if len(opts) == 0 {
		opts = []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(gsheets.SpreadsheetsScope),
		}
	}
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return &Appender{svc: svc, spreadsheetID: cfg.SpreadsheetID, rng: cfg.Range}, nil
}

// Name identifies the sink in logs and metrics.
func (a *Appender) Name() string { return "sheets" }

// AppendLead appends [timestamp, sender_id, message, language, source, reply_tier].
func (a *Appender) AppendLead(ctx context.Context, l domain.Lead) error {
	vr := &gsheets.ValueRange{Values: [][]interface{}{Row(l)}}
	_, err := a.svc.Spreadsheets.Values.
		Append(a.spreadsheetID, a.rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: append lead: %w", err)
	}
	return nil
}

// Row renders a lead as a spreadsheet row.
func Row(l domain.Lead) []interface{} {
	return []interface{}{
		l.Timestamp.UTC().Format(time.RFC3339),
		l.SenderID,
		l.MessageText,
		l.Language,
		l.Source,
		l.ReplyTier,
	}
}
