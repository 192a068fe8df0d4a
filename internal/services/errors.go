// Package services defines the business logic of the Messenger bot: reply
// resolution, lead capture, conversation transcripts, and the per-event
// webhook flow. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrConversationNotFound indicates that no conversation exists for the
	// requested sender.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptyText is returned when a dry-run resolve request has no text.
	ErrEmptyText = errors.New("text is empty")

	// ErrTextTooLong is returned when a dry-run resolve request exceeds the
	// configured maximum length.
	ErrTextTooLong = errors.New("text too long")
)
