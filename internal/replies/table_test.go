package replies

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/language"
)

func TestDefault_LoadsAndValidates(t *testing.T) {
	tbl := Default()
	if tbl.Len() == 0 {
		t.Fatalf("expected entries in default table")
	}
	if tbl.Greeting.For(language.Bengali) == "" || tbl.Fallback.For(language.English) == "" {
		t.Fatalf("greeting/fallback must be populated")
	}
}

func TestMatch_FirstEntryInOrderWins(t *testing.T) {
	tbl, err := New(
		Localized{BN: "g", EN: "g"},
		Localized{BN: "f", EN: "f"},
		[]Entry{
			{Keywords: []string{"ac"}, AnswerBN: "এসি", AnswerEN: "ac"},
			{Keywords: []string{"price", "ac"}, AnswerBN: "দাম", AnswerEN: "price"},
		},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m, ok := tbl.Match("AC price please")
	if !ok || m.Index != 0 || m.Keyword != "ac" {
		t.Fatalf("expected first entry to win, got %+v ok=%v", m, ok)
	}

	m, ok = tbl.Match("what is the PRICE")
	if !ok || m.Index != 1 || m.Entry.Answer(language.English) != "price" {
		t.Fatalf("expected second entry, got %+v ok=%v", m, ok)
	}

	if _, ok := tbl.Match("nothing relevant"); ok {
		t.Fatalf("expected no match")
	}
	if _, ok := tbl.Match("   "); ok {
		t.Fatalf("blank text must not match")
	}
}

func TestMatch_NormalizesWhitespaceAndCase(t *testing.T) {
	tbl, err := New(
		Localized{BN: "g", EN: "g"},
		Localized{BN: "f", EN: "f"},
		[]Entry{{Keywords: []string{"  Koto   Taka "}, AnswerBN: "b", AnswerEN: "e"}},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := tbl.Match("service KOTO\n\ttaka?"); !ok {
		t.Fatalf("expected whitespace/case-insensitive match")
	}
}

func TestMatch_DefaultTableBangla(t *testing.T) {
	tbl := Default()
	m, ok := tbl.Match("এসি সার্ভিস কত টাকা?")
	if !ok {
		t.Fatalf("expected a match")
	}
	if m.Index != 0 {
		t.Fatalf("expected AC entry (index 0) to win over price, got %d", m.Index)
	}
}

func TestNew_Validation(t *testing.T) {
	ok := Localized{BN: "x", EN: "y"}
	cases := []struct {
		name     string
		greeting Localized
		fallback Localized
		entries  []Entry
	}{
		{"missing greeting en", Localized{BN: "x"}, ok, nil},
		{"missing fallback bn", ok, Localized{EN: "y"}, nil},
		{"entry without answers", ok, ok, []Entry{{Keywords: []string{"a"}, AnswerBN: "b"}}},
		{"entry blank keywords", ok, ok, []Entry{{Keywords: []string{" ", ""}, AnswerBN: "b", AnswerEN: "e"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.greeting, tc.fallback, tc.entries)
			if !errors.Is(err, ErrInvalidTable) {
				t.Fatalf("expected ErrInvalidTable, got %v", err)
			}
		})
	}
}

func TestLoad_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	y := filepath.Join(dir, "r.yml")
	if err := os.WriteFile(y, []byte(`greeting: {bn: "হ্যালো", en: "hi"}
fallback: {bn: "দুঃখিত", en: "sorry"}
entries:
  - keywords: [paint]
    answer_bn: "রং"
    answer_en: "paint"
`), 0o600); err != nil {
		t.Fatal(err)
	}
	tbl, err := Load(y)
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	if m, ok := tbl.Match("need PAINT job"); !ok || m.Entry.AnswerEN != "paint" {
		t.Fatalf("yaml table match failed: %+v %v", m, ok)
	}

	j := filepath.Join(dir, "r.json")
	if err := os.WriteFile(j, []byte(`{"greeting":{"bn":"a","en":"b"},"fallback":{"bn":"c","en":"d"},"entries":[{"keywords":["pipe"],"answer_bn":"x","answer_en":"y"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	tbl, err = Load(j)
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	if tbl.Fallback.For(language.Bengali) != "c" {
		t.Fatalf("unexpected fallback: %+v", tbl.Fallback)
	}

	if _, err := Load(filepath.Join(dir, "r.txt")); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Hello\t\nWORLD  "); got != "hello world" {
		t.Fatalf("Normalize = %q", got)
	}
}
