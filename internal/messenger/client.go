package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// MaxTextRunes is the Send API limit for a text message.
const MaxTextRunes = 2000

// Sender actions.
const (
	ActionMarkSeen  = "mark_seen"
	ActionTypingOn  = "typing_on"
	ActionTypingOff = "typing_off"
)

// ErrSendFailed is returned (wrapped) when the Graph API rejects a send.
var ErrSendFailed = errors.New("messenger send failed")

// Client posts messages and sender actions through the Graph Send API.
type Client struct {
	endpoint string
	token    string
	hc       *http.Client
}

// NewClient builds a client for {base}/{version}/me/messages. A nil hc uses
// http.DefaultClient.
func NewClient(base, version, pageAccessToken string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		endpoint: strings.TrimRight(base, "/") + "/" + strings.Trim(version, "/") + "/me/messages",
		token:    pageAccessToken,
		hc:       hc,
	}
}

type sendRequest struct {
	Recipient     Party        `json:"recipient"`
	MessagingType string       `json:"messaging_type,omitempty"`
	Message       *sendMessage `json:"message,omitempty"`
	SenderAction  string       `json:"sender_action,omitempty"`
}

type sendMessage struct {
	Text string `json:"text"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends text to recipientID as a RESPONSE message. Text longer
// than MaxTextRunes is split into ordered chunks; sending stops at the
// first failed chunk.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	for _, chunk := range SplitText(text, MaxTextRunes) {
		err := c.post(ctx, sendRequest{
			Recipient:     Party{ID: recipientID},
			MessagingType: "RESPONSE",
			Message:       &sendMessage{Text: chunk},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SendAction sends a sender action (mark_seen, typing_on, typing_off).
func (c *Client) SendAction(ctx context.Context, recipientID, action string) error {
	return c.post(ctx, sendRequest{
		Recipient:    Party{ID: recipientID},
		SenderAction: action,
	})
}

func (c *Client) post(ctx context.Context, payload sendRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	u := c.endpoint + "?access_token=" + url.QueryEscape(c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		// url.Error embeds the URL, which carries the token.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var ge graphError
	if json.Unmarshal(raw, &ge) == nil && ge.Error.Message != "" {
		return fmt.Errorf("%w: status %d: %s (code %d)", ErrSendFailed, resp.StatusCode, ge.Error.Message, ge.Error.Code)
	}
	return fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode)
}

// SplitText breaks s into chunks of at most max runes, preferring to cut
// after a newline, then after a space, and only then mid-word.
func SplitText(s string, max int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return []string{s}
	}
	var out []string
	for s != "" {
		if utf8.RuneCountInString(s) <= max {
			out = append(out, s)
			break
		}
		// byte offset of the rune just past the limit
		cut, n := len(s), 0
		for i := range s {
			if n == max {
				cut = i
				break
			}
			n++
		}
		head := s[:cut]
		if i := strings.LastIndexByte(head, '\n'); i > 0 {
			cut = i + 1
		} else if i := strings.LastIndexByte(head, ' '); i > 0 {
			cut = i + 1
		}
		if chunk := strings.TrimSpace(s[:cut]); chunk != "" {
			out = append(out, chunk)
		}
		s = strings.TrimSpace(s[cut:])
	}
	return out
}
