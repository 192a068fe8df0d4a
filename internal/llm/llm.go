// Package llm provides the generative second reply tier. Implementations
// answer a free-form customer question in the detected language.
package llm

import (
	"context"
	"errors"

	"golang.org/x/text/language"
)

// ErrEmptyResponse is returned when the model produced no usable text
// (no candidates, blocked by safety filters, or only whitespace).
var ErrEmptyResponse = errors.New("llm: empty response")

// Generator produces a reply to prompt in the given language.
type Generator interface {
	Generate(ctx context.Context, prompt string, lang language.Tag) (string, error)
}
