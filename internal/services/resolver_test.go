package services

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/text/language"

	"github.com/tbourn/go-messenger-bot/internal/domain"
	"github.com/tbourn/go-messenger-bot/internal/observability"
	"github.com/tbourn/go-messenger-bot/internal/replies"
)

func TestResolver_KeywordTierWins(t *testing.T) {
	gen := &fakeGen{out: "from llm"}
	r := &Resolver{Table: replies.Default(), LLM: gen}

	got := r.Resolve(context.Background(), "My pipe is leaking", language.English)
	if got.Tier != domain.SourceKeyword {
		t.Fatalf("tier=%q want keyword", got.Tier)
	}
	if !strings.Contains(got.Text, "leaks") {
		t.Fatalf("unexpected answer %q", got.Text)
	}
	if gen.calls != 0 {
		t.Fatalf("llm must not be called on keyword hit")
	}
}

func TestResolver_KeywordAnswerFollowsLanguage(t *testing.T) {
	r := &Resolver{Table: replies.Default()}
	en := r.Resolve(context.Background(), "need ac repair", language.English)
	bn := r.Resolve(context.Background(), "need ac repair", language.Bengali)
	if en.Text == bn.Text {
		t.Fatalf("expected different answers per language")
	}
}

func TestResolver_LLMTier(t *testing.T) {
	gen := &fakeGen{out: "  We can help with that.  "}
	r := &Resolver{Table: replies.Default(), LLM: gen}

	got := r.Resolve(context.Background(), "Do you sell bicycles?", language.English)
	if got.Tier != domain.SourceLLM || got.Text != "We can help with that." {
		t.Fatalf("got %+v", got)
	}
	if gen.lang != language.English {
		t.Fatalf("llm got lang %v", gen.lang)
	}
}

func TestResolver_LLMReplyClipped(t *testing.T) {
	gen := &fakeGen{out: "abcdefghij"}
	r := &Resolver{Table: replies.Default(), LLM: gen, MaxReplyRunes: 4}

	got := r.Resolve(context.Background(), "Do you sell bicycles?", language.English)
	if got.Text != "abcd" {
		t.Fatalf("clip failed: %q", got.Text)
	}
}

func TestResolver_FallbackWhenLLMFailsOrBlank(t *testing.T) {
	tbl := replies.Default()
	cases := []struct {
		name string
		gen  *fakeGen
	}{
		{"error", &fakeGen{err: errBoom}},
		{"blank", &fakeGen{out: "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &Resolver{Table: tbl, LLM: tc.gen}
			got := r.Resolve(context.Background(), "Do you sell bicycles?", language.Bengali)
			if got.Tier != domain.SourceFallback || got.Text != tbl.Fallback.BN {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestResolver_FallbackWithoutLLM(t *testing.T) {
	tbl := replies.Default()
	r := &Resolver{Table: tbl}
	got := r.Resolve(context.Background(), "Do you sell bicycles?", language.English)
	if got.Tier != domain.SourceFallback || got.Text != tbl.Fallback.EN {
		t.Fatalf("got %+v", got)
	}
}

func TestResolver_Greeting(t *testing.T) {
	tbl := replies.Default()
	r := &Resolver{Table: tbl}
	if g := r.Greeting(language.Bengali); g.Text != tbl.Greeting.BN || g.Tier != domain.SourceGreeting {
		t.Fatalf("got %+v", g)
	}
}

func TestResolver_DryRun(t *testing.T) {
	r := &Resolver{Table: replies.Default(), MaxTextRunes: 10}

	if _, _, err := r.DryRun(context.Background(), "   "); err != ErrEmptyText {
		t.Fatalf("want ErrEmptyText, got %v", err)
	}
	if _, _, err := r.DryRun(context.Background(), "this is far too long"); err != ErrTextTooLong {
		t.Fatalf("want ErrTextTooLong, got %v", err)
	}
	tag, rep, err := r.DryRun(context.Background(), "পাইপ লিক")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if tag != language.Bengali || rep.Tier != domain.SourceKeyword {
		t.Fatalf("got tag=%v reply=%+v", tag, rep)
	}
}

func TestResolver_DryRunKeepsLiveMetricsClean(t *testing.T) {
	gen := &fakeGen{out: "We can send a plumber tomorrow."}
	r := &Resolver{Table: replies.Default(), LLM: gen}

	liveLLM := testutil.ToFloat64(observability.Replies.WithLabelValues(domain.SourceLLM))
	llmOK := testutil.ToFloat64(observability.LLMRequests.WithLabelValues("ok"))
	dry := testutil.ToFloat64(observability.DryRuns.WithLabelValues(domain.SourceLLM))

	_, rep, err := r.DryRun(context.Background(), "Can someone look at my balcony door?")
	if err != nil || rep.Tier != domain.SourceLLM || gen.calls != 1 {
		t.Fatalf("dry run: rep=%+v err=%v calls=%d", rep, err, gen.calls)
	}

	if got := testutil.ToFloat64(observability.Replies.WithLabelValues(domain.SourceLLM)); got != liveLLM {
		t.Errorf("live replies counter moved: %v -> %v", liveLLM, got)
	}
	if got := testutil.ToFloat64(observability.LLMRequests.WithLabelValues("ok")); got != llmOK {
		t.Errorf("llm requests counter moved: %v -> %v", llmOK, got)
	}
	if got := testutil.ToFloat64(observability.DryRuns.WithLabelValues(domain.SourceLLM)); got != dry+1 {
		t.Errorf("dry runs = %v, want %v", got, dry+1)
	}

	r.Resolve(context.Background(), "Can someone look at my balcony door?", language.English)
	if got := testutil.ToFloat64(observability.Replies.WithLabelValues(domain.SourceLLM)); got != liveLLM+1 {
		t.Errorf("Resolve should count live replies: %v -> %v", liveLLM, got)
	}
}
