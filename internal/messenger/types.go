// Package messenger contains the Messenger Platform webhook payload types,
// the X-Hub-Signature-256 check, and a small Graph API Send client.
package messenger

import "strings"

// ObjectPage is the only webhook object type the bot handles.
const ObjectPage = "page"

// WebhookEvent is the top-level webhook payload.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the messaging events of one page.
type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

// Party identifies a sender or recipient by page-scoped id.
type Party struct {
	ID string `json:"id"`
}

// Messaging is a single event: a message, postback, delivery or read receipt.
type Messaging struct {
	Sender    Party     `json:"sender"`
	Recipient Party     `json:"recipient"`
	Timestamp int64     `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
	Postback  *Postback `json:"postback,omitempty"`
	Delivery  *Delivery `json:"delivery,omitempty"`
	Read      *Read     `json:"read,omitempty"`
}

// Message is the content of a user (or echoed page) message.
type Message struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text"`
	IsEcho      bool         `json:"is_echo,omitempty"`
	QuickReply  *QuickReply  `json:"quick_reply,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// QuickReply carries the payload of a tapped quick reply button.
type QuickReply struct {
	Payload string `json:"payload"`
}

// Attachment is a media item sent by the user.
type Attachment struct {
	Type    string            `json:"type"`
	Payload AttachmentPayload `json:"payload"`
}

// AttachmentPayload holds the CDN URL of an attachment.
type AttachmentPayload struct {
	URL string `json:"url"`
}

// Postback is sent when the user taps a button such as "Get Started".
type Postback struct {
	MID     string `json:"mid,omitempty"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// Delivery is a delivery receipt.
type Delivery struct {
	MIDs      []string `json:"mids"`
	Watermark int64    `json:"watermark"`
}

// Read is a read receipt.
type Read struct {
	Watermark int64 `json:"watermark"`
}

// IsUserMessage reports whether the event is a message authored by the
// user, i.e. not an echo of the page's own message.
func (m Messaging) IsUserMessage() bool {
	return m.Message != nil && !m.Message.IsEcho
}

// IsPostback reports whether the event is a button postback.
func (m Messaging) IsPostback() bool {
	return m.Postback != nil
}

// MID returns the message or postback id, or "" when the event has none.
func (m Messaging) MID() string {
	switch {
	case m.Message != nil:
		return m.Message.MID
	case m.Postback != nil:
		return m.Postback.MID
	}
	return ""
}

// AudioURL returns the URL of the first attachment when its type mentions
// audio. Only the first attachment is inspected.
func (m Messaging) AudioURL() (string, bool) {
	if m.Message == nil || len(m.Message.Attachments) == 0 {
		return "", false
	}
	a := m.Message.Attachments[0]
	if !strings.Contains(strings.ToLower(a.Type), "audio") || a.Payload.URL == "" {
		return "", false
	}
	return a.Payload.URL, true
}

// Kind labels the event for metrics and logs.
func (m Messaging) Kind() string {
	switch {
	case m.Message != nil && m.Message.IsEcho:
		return "echo"
	case m.Message != nil:
		return "message"
	case m.Postback != nil:
		return "postback"
	case m.Delivery != nil:
		return "delivery"
	case m.Read != nil:
		return "read"
	}
	return "other"
}
