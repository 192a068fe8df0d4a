package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/tbourn/go-messenger-bot/internal/config"
	"github.com/tbourn/go-messenger-bot/internal/lang"
)

// generateContent is a seam for tests.
var generateContent = func(ctx context.Context, m *genai.GenerativeModel, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	return m.GenerateContent(ctx, parts...)
}

// Gemini answers through the Google Gemini API. One model handle is kept
// per reply language so that the system instruction is fixed per handle.
type Gemini struct {
	client  *genai.Client
	models  map[string]*genai.GenerativeModel
	timeout time.Duration
}

// NewGemini dials the Gemini API with the configured key and model.
func NewGemini(ctx context.Context, cfg config.LLMConfig, opts ...option.ClientOption) (*Gemini, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	g := &Gemini{
		client:  client,
		models:  make(map[string]*genai.GenerativeModel, 2),
		timeout: cfg.Timeout,
	}
	for _, tag := range []language.Tag{language.Bengali, language.English} {
		m := client.GenerativeModel(cfg.Model)
		configureModel(m, cfg, tag)
		g.models[lang.Code(tag)] = m
	}
	return g, nil
}

func configureModel(m *genai.GenerativeModel, cfg config.LLMConfig, tag language.Tag) {
	m.SetTemperature(float32(cfg.Temperature))
	if cfg.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(int32(cfg.MaxOutputTokens))
	}
	m.SystemInstruction = genai.NewUserContent(genai.Text(SystemPrompt(cfg.BusinessName, tag)))
}

// SystemPrompt is the instruction given to the model for replies in tag.
func SystemPrompt(business string, tag language.Tag) string {
	if strings.TrimSpace(business) == "" {
		business = "our business"
	}
	hint := "Reply in English."
	if lang.Code(tag) == lang.CodeBN {
		hint = "Reply in Bangla."
	}
	return fmt.Sprintf("You are a customer support agent for %s. Reply in Bangla or English as needed. %s Keep answers short and friendly.", business, hint)
}

// Generate asks the model for a reply to prompt.
func (g *Gemini) Generate(ctx context.Context, prompt string, tag language.Tag) (string, error) {
	m, ok := g.models[lang.Code(tag)]
	if !ok {
		m = g.models[lang.CodeEN]
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := generateContent(ctx, m, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}
