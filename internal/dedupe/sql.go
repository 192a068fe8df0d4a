package dedupe

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-messenger-bot/internal/repo"
)

// purgeInterval bounds how often expired rows are deleted.
const purgeInterval = 10 * time.Minute

// SQL is a Store backed by the processed_keys table, so dedupe survives
// restarts of a single instance.
type SQL struct {
	db  *gorm.DB
	now func() time.Time

	mu        sync.Mutex
	lastPurge time.Time
}

// NewSQL returns a Store over db. The processed_keys table must exist
// (see repo.AutoMigrate).
func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db, now: time.Now}
}

// MarkIfNew implements Store.
func (s *SQL) MarkIfNew(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.now()
	s.maybePurge(ctx, now)

	err := repo.InsertProcessedKey(ctx, s.db, key, ttl, now)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repo.ErrDuplicate):
		return false, nil
	default:
		return false, err
	}
}

func (s *SQL) maybePurge(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := now.Sub(s.lastPurge) >= purgeInterval
	if due {
		s.lastPurge = now
	}
	s.mu.Unlock()
	if due {
		// Best effort; a failed purge is retried on the next interval.
		_, _ = repo.PurgeExpiredKeys(ctx, s.db, now)
	}
}
