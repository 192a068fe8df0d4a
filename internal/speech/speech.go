// Package speech turns Messenger voice clips into text using an
// OpenAI-compatible /audio/transcriptions endpoint (Groq, OpenAI, or a
// self-hosted Whisper server).
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tbourn/go-messenger-bot/internal/config"
)

var (
	// ErrTooLarge is returned when the audio exceeds the configured size cap.
	ErrTooLarge = errors.New("speech: audio too large")
	// ErrEmptyTranscript is returned when the service returned no text.
	ErrEmptyTranscript = errors.New("speech: empty transcript")
)

// Transcriber converts the audio at a URL to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

// Whisper implements Transcriber against a Whisper-style API through the
// go-openai client, so any OpenAI-compatible base URL works.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
	maxBytes int64
	timeout  time.Duration
	hc       *http.Client
}

// NewWhisper builds a transcriber from config. hc is used both to fetch the
// attachment and to call the API; nil means http.DefaultClient.
func NewWhisper(cfg config.SpeechConfig, hc *http.Client) *Whisper {
	if hc == nil {
		hc = http.DefaultClient
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.APIBase, "/")
	oc.HTTPClient = hc
	return &Whisper{
		client:   openai.NewClientWithConfig(oc),
		model:    cfg.Model,
		language: cfg.Language,
		maxBytes: cfg.MaxBytes,
		timeout:  cfg.Timeout,
		hc:       hc,
	}
}

// Transcribe downloads audioURL and uploads it for transcription.
func (w *Whisper) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	audio, name, err := w.download(ctx, audioURL)
	if err != nil {
		return "", err
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		Reader:   bytes.NewReader(audio),
		FilePath: name,
		Language: w.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("speech: transcribe: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

func (w *Whisper) download(ctx context.Context, audioURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("speech: download: %w", err)
	}
	resp, err := w.hc.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("speech: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("speech: download: status %d", resp.StatusCode)
	}
	if w.maxBytes > 0 && resp.ContentLength > w.maxBytes {
		return nil, "", ErrTooLarge
	}

	r := io.Reader(resp.Body)
	if w.maxBytes > 0 {
		r = io.LimitReader(resp.Body, w.maxBytes+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("speech: download: %w", err)
	}
	if w.maxBytes > 0 && int64(len(b)) > w.maxBytes {
		return nil, "", ErrTooLarge
	}
	return b, fileName(req.URL.Path, resp.Header.Get("Content-Type")), nil
}

// fileName picks an upload name whose extension the API can use to sniff
// the codec. Messenger voice clips are usually MP4/AAC.
func fileName(urlPath, contentType string) string {
	if base := path.Base(urlPath); strings.Contains(base, ".") {
		return base
	}
	switch {
	case strings.Contains(contentType, "ogg"):
		return "audio.ogg"
	case strings.Contains(contentType, "mpeg"):
		return "audio.mp3"
	case strings.Contains(contentType, "wav"):
		return "audio.wav"
	}
	return "audio.mp4"
}
