package compress

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"ai-rag-be/pkg/llm"
	"ai-rag-be/pkg/store"
)

// fakeLLM answers Generate with a canned response per document text
// fragment, or a global error.
type fakeLLM struct {
	responses map[string]string
	err       error
	calls     int
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	for fragment, response := range f.responses {
		if strings.Contains(prompt, fragment) {
			return response, nil
		}
	}
	return "extracted", nil
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return f.Generate(ctx, history[len(history)-1].Content, options...)
}

func newTestCompressor(provider llm.LLMProvider) *Compressor {
	return NewCompressor(provider, 0.7, 0.85, log.New(io.Discard, "", 0))
}

func TestCompressDropsBelowSimilarityFloor(t *testing.T) {
	provider := &fakeLLM{}
	c := newTestCompressor(provider)

	docs := []store.Document{
		{ID: "keep", Score: 0.9},
		{ID: "drop", Score: 0.5},
	}
	out := c.Compress(context.Background(), docs, "q")
	if len(out) != 1 || out[0].ID != "keep" {
		t.Errorf("out = %+v, want only keep", out)
	}
}

func TestCompressSkipsLLMWithTwoHighConfidenceDocs(t *testing.T) {
	provider := &fakeLLM{}
	c := newTestCompressor(provider)

	docs := []store.Document{
		{ID: "a", Score: 0.90, Text: "alpha"},
		{ID: "b", Score: 0.88, Text: "beta"},
		{ID: "c", Score: 0.75, Text: "gamma"},
	}
	out := c.Compress(context.Background(), docs, "q")
	if len(out) != 3 {
		t.Fatalf("out = %d docs, want 3", len(out))
	}
	if provider.calls != 0 {
		t.Errorf("LLM called %d times, want 0 (high-confidence shortcut)", provider.calls)
	}
	if out[2].Text != "gamma" {
		t.Errorf("borderline doc rewritten without compression: %q", out[2].Text)
	}
}

func TestCompressDropsNoRelevantContent(t *testing.T) {
	provider := &fakeLLM{responses: map[string]string{
		"useless text": NoRelevantContent,
		"useful text":  "the useful sentence",
	}}
	c := newTestCompressor(provider)

	docs := []store.Document{
		{ID: "useless", Score: 0.75, Text: "useless text"},
		{ID: "useful", Score: 0.75, Text: "useful text"},
	}
	out := c.Compress(context.Background(), docs, "q")
	if len(out) != 1 || out[0].ID != "useful" {
		t.Fatalf("out = %+v, want only useful", out)
	}
	if out[0].Text != "the useful sentence" {
		t.Errorf("text = %q, want extracted sentence", out[0].Text)
	}
}

func TestCompressKeepsOriginalOnLLMFailure(t *testing.T) {
	provider := &fakeLLM{err: errors.New("llm down")}
	c := newTestCompressor(provider)

	docs := []store.Document{{ID: "a", Score: 0.75, Text: "original"}}
	out := c.Compress(context.Background(), docs, "q")
	if len(out) != 1 || out[0].Text != "original" {
		t.Errorf("out = %+v, want original kept", out)
	}
}

func TestBuildContextPacksBestFirst(t *testing.T) {
	docs := []store.Document{
		{ID: "low", Collection: "a", Score: 0.5, Text: "low text"},
		{ID: "high", Collection: "a", Score: 0.9, Text: "high text"},
	}
	ctx := BuildContext(docs, 8000)

	highIdx := strings.Index(ctx, "high text")
	lowIdx := strings.Index(ctx, "low text")
	if highIdx == -1 || lowIdx == -1 {
		t.Fatalf("context missing documents: %q", ctx)
	}
	if highIdx > lowIdx {
		t.Error("best-scored document is not packed first")
	}
}

func TestBuildContextTruncatesFirstOversizedDoc(t *testing.T) {
	huge := strings.Repeat("x", 100_000)
	docs := []store.Document{{ID: "huge", Collection: "a", Score: 0.9, Text: huge}}

	ctx := BuildContext(docs, 100) // 400-char budget
	if len(ctx) > 100*charsPerToken+len(truncationMarker) {
		t.Errorf("context length %d exceeds budget", len(ctx))
	}
	if !strings.Contains(ctx, "truncated") {
		t.Error("truncation marker missing")
	}
}

func TestBuildContextOmitsOverflowDocs(t *testing.T) {
	body := strings.Repeat("y", 1500)
	docs := []store.Document{
		{ID: "first", Collection: "a", Score: 0.9, Text: body},
		{ID: "second", Collection: "a", Score: 0.8, Text: body},
	}
	ctx := BuildContext(docs, 500) // fits one doc, not two

	if !strings.Contains(ctx, "omitted") {
		t.Errorf("omission marker missing: len=%d", len(ctx))
	}
	if strings.Count(ctx, body) != 1 {
		t.Errorf("packed %d full docs, want 1", strings.Count(ctx, body))
	}
}

func TestBuildContextEmptyInput(t *testing.T) {
	if got := BuildContext(nil, 1000); got != "" {
		t.Errorf("BuildContext(nil) = %q, want empty", got)
	}
}
