// Package replies holds the hand-authored keyword→answer table that forms
// the first reply tier, together with the greeting and the static fallback
// contact message.
//
// Matching is deliberately simple: entries are checked in table order and
// the first entry with any keyword contained in the (normalized) user text
// wins. Authors control precedence by ordering entries.
//
// A Table is immutable after construction and safe for concurrent use.
package replies

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-messenger-bot/internal/lang"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalidTable is returned (wrapped) when a table fails validation.
var ErrInvalidTable = errors.New("invalid reply table")

// Localized is a message available in Bangla and English.
type Localized struct {
	BN string `yaml:"bn" json:"bn"`
	EN string `yaml:"en" json:"en"`
}

// For returns the variant matching tag; anything not Bangla gets English.
func (l Localized) For(tag language.Tag) string {
	if lang.Code(tag) == lang.CodeBN {
		return l.BN
	}
	return l.EN
}

// Entry is one row of the keyword table.
type Entry struct {
	Keywords []string `yaml:"keywords"  json:"keywords"`
	AnswerBN string   `yaml:"answer_bn" json:"answer_bn"`
	AnswerEN string   `yaml:"answer_en" json:"answer_en"`
}

// Answer returns the answer in the language of tag.
func (e Entry) Answer(tag language.Tag) string {
	return Localized{BN: e.AnswerBN, EN: e.AnswerEN}.For(tag)
}

// Match describes a successful table lookup.
type Match struct {
	Index   int
	Keyword string
	Entry   Entry
}

// Table is the validated reply table.
type Table struct {
	Greeting Localized `yaml:"greeting" json:"greeting"`
	Fallback Localized `yaml:"fallback" json:"fallback"`
	Entries  []Entry   `yaml:"entries"  json:"entries"`

	// normalized keywords, parallel to Entries
	keys [][]keyword
}

type keyword struct {
	norm, raw string
}

// New validates and compiles a table.
func New(greeting, fallback Localized, entries []Entry) (*Table, error) {
	t := &Table{Greeting: greeting, Fallback: fallback, Entries: entries}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return t, nil
}

// Default returns the embedded HomeFixerKhulna table.
func Default() *Table {
	t, err := Parse(defaultYAML, FormatYAML)
	if err != nil {
		panic(fmt.Sprintf("replies: embedded default table: %v", err))
	}
	return t
}

// Format selects the decoder used by Parse.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// Load reads a table from path. The format is chosen by extension:
// .json is decoded as JSON, .yaml/.yml as YAML.
func Load(path string) (*Table, error) {
	var f Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		f = FormatJSON
	case ".yaml", ".yml":
		f = FormatYAML
	default:
		return nil, fmt.Errorf("replies: unsupported file extension %q", filepath.Ext(path))
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replies: read %s: %w", path, err)
	}
	return Parse(b, f)
}

// Parse decodes and validates a table.
func Parse(b []byte, f Format) (*Table, error) {
	var raw Table
	var err error
	switch f {
	case FormatJSON:
		err = json.Unmarshal(b, &raw)
	default:
		err = yaml.Unmarshal(b, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("replies: decode: %w", err)
	}
	return New(raw.Greeting, raw.Fallback, raw.Entries)
}

func (t *Table) compile() error {
	if strings.TrimSpace(t.Greeting.BN) == "" || strings.TrimSpace(t.Greeting.EN) == "" {
		return fmt.Errorf("%w: greeting needs both bn and en", ErrInvalidTable)
	}
	if strings.TrimSpace(t.Fallback.BN) == "" || strings.TrimSpace(t.Fallback.EN) == "" {
		return fmt.Errorf("%w: fallback needs both bn and en", ErrInvalidTable)
	}
	t.keys = make([][]keyword, len(t.Entries))
	for i, e := range t.Entries {
		if strings.TrimSpace(e.AnswerBN) == "" || strings.TrimSpace(e.AnswerEN) == "" {
			return fmt.Errorf("%w: entry %d needs answer_bn and answer_en", ErrInvalidTable, i)
		}
		ks := make([]keyword, 0, len(e.Keywords))
		for _, k := range e.Keywords {
			if n := Normalize(k); n != "" {
				ks = append(ks, keyword{norm: n, raw: k})
			}
		}
		if len(ks) == 0 {
			return fmt.Errorf("%w: entry %d has no keywords", ErrInvalidTable, i)
		}
		t.keys[i] = ks
	}
	return nil
}

// Match returns the first entry, in table order, with a keyword contained
// in text.
func (t *Table) Match(text string) (Match, bool) {
	n := Normalize(text)
	if n == "" {
		return Match{}, false
	}
	for i, ks := range t.keys {
		for _, k := range ks {
			if strings.Contains(n, k.norm) {
				return Match{Index: i, Keyword: k.raw, Entry: t.Entries[i]}, true
			}
		}
	}
	return Match{}, false
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.Entries) }
