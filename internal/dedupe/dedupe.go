// Package dedupe provides bounded "seen" sets used to drop redelivered
// webhook events and to greet each sender only once.
//
// Keys are namespaced by purpose (see MessageKey and GreetingKey) and expire
// after a TTL, so the sets stay bounded no matter how long the process runs.
package dedupe

import (
	"context"
	"time"
)

// Store remembers keys for a limited time.
type Store interface {
	// MarkIfNew records key for ttl and reports whether it was absent
	// (or expired) before the call.
	MarkIfNew(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MessageKey is the key for an inbound Messenger message id.
func MessageKey(mid string) string { return "mid:" + mid }

// GreetingKey is the key for a sender that has already been greeted.
func GreetingKey(senderID string) string { return "greeted:" + senderID }
