package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-messenger-bot/internal/domain"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_%d.db", time.Now().UnixNano()))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Conversation{}, &domain.Message{}, &domain.Lead{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type sent struct {
	To, Text, Action string
}

type fakeSender struct {
	mu      sync.Mutex
	out     []sent
	textErr error
}

func (f *fakeSender) SendText(_ context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return f.textErr
	}
	f.out = append(f.out, sent{To: to, Text: text})
	return nil
}

func (f *fakeSender) SendAction(_ context.Context, to, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, sent{To: to, Action: action})
	return nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.out {
		if s.Action == "" {
			out = append(out, s.Text)
		}
	}
	return out
}

func (f *fakeSender) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.out {
		if s.Action != "" {
			out = append(out, s.Action)
		}
	}
	return out
}

type fakeGen struct {
	out   string
	err   error
	calls int
	lang  language.Tag
}

func (f *fakeGen) Generate(_ context.Context, _ string, tag language.Tag) (string, error) {
	f.calls++
	f.lang = tag
	return f.out, f.err
}

type fakeTranscriber struct {
	text string
	err  error
	url  string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioURL string) (string, error) {
	f.url = audioURL
	return f.text, f.err
}

type fakeSink struct {
	err   error
	leads []domain.Lead
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) AppendLead(_ context.Context, l domain.Lead) error {
	f.leads = append(f.leads, l)
	return f.err
}

type fakeStore struct {
	seen map[string]bool
	err  error
}

func (f *fakeStore) MarkIfNew(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

var errBoom = errors.New("boom")
