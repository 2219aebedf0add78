package executor

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"ai-rag-be/pkg/embedding"
	"ai-rag-be/pkg/llm"
	"ai-rag-be/pkg/rag/answer"
	"ai-rag-be/pkg/rag/arbiter"
	"ai-rag-be/pkg/rag/compress"
	"ai-rag-be/pkg/rag/conflict"
	"ai-rag-be/pkg/rag/enhance"
	"ai-rag-be/pkg/rag/router"
	"ai-rag-be/pkg/rag/search"
	"ai-rag-be/pkg/store"
	"ai-rag-be/pkg/vector"
)

type fakeEmbedder struct{}

func (f *fakeEmbedder) Generate(_ context.Context, _, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

// descriptorMissEmbedder keeps collection descriptors orthogonal to the
// query embedding, so similarity routing never qualifies a collection.
type descriptorMissEmbedder struct{}

func (f *descriptorMissEmbedder) Generate(_ context.Context, text, _ string) ([]float32, error) {
	if strings.HasPrefix(text, "documents about ") {
		return []float32{0, 1, 0}, nil
	}
	return []float32{1, 0, 0}, nil
}

type fakeVectorStore struct {
	collections  []string
	byCollection map[string][]store.Document
	listErr      error
	searchErr    error
}

func (f *fakeVectorStore) Search(_ context.Context, collection string, _ []float32, _ int, _ vector.Filter) ([]store.Document, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	docs := make([]store.Document, len(f.byCollection[collection]))
	copy(docs, f.byCollection[collection])
	return docs, nil
}

func (f *fakeVectorStore) ListCollections(_ context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.collections, nil
}

// fakeLLM routes by prompt shape: judgment prompts get the relevance
// verdict, conflict prompts the conflict verdict, everything else the
// generation response.
type fakeLLM struct {
	relevance  string
	conflict   string
	generation string
	genErr     error
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	if strings.Contains(prompt, "judge relevance") || strings.Contains(prompt, "judge whether") {
		return f.relevance, nil
	}
	if strings.Contains(prompt, "CONFLICT") {
		return f.conflict, nil
	}
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.generation, nil
}

func (f *fakeLLM) Chat(_ context.Context, _ []llm.Message, _ ...llm.Option) (string, error) {
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.generation, nil
}

func newTestPipeline(vs vector.Store, provider llm.LLMProvider) *Pipeline {
	return newRoutedTestPipeline(vs, provider, &fakeEmbedder{})
}

func newRoutedTestPipeline(vs vector.Store, provider llm.LLMProvider, embedder embedding.Provider) *Pipeline {
	logger := log.New(io.Discard, "", 0)
	return NewPipeline(
		router.NewCollectionRouter(embedder, 0.6, logger),
		enhance.NewEnhancer(provider, logger),
		search.NewConcurrentRetriever(embedder, vs, logger),
		compress.NewCompressor(provider, 0.7, 0.85, logger),
		arbiter.NewArbiter(provider, 0.85, 0.7, logger),
		conflict.NewResolver(provider, logger),
		answer.NewSynthesizer(provider, logger),
		vs,
		Config{TimeWeight: 0.3, ContextTokenBudget: 8000, CallTimeout: 5 * time.Second},
		logger,
	)
}

func TestExecuteEmptyIndexDegradesToKnowledge(t *testing.T) {
	vs := &fakeVectorStore{collections: []string{"docs"}, byCollection: map[string][]store.Document{}}
	provider := &fakeLLM{generation: "ANSWER: From my own knowledge.\nSUMMARY: knowledge answer"}
	p := newTestPipeline(vs, provider)

	result := p.Execute(context.Background(), Request{Query: "anything", Limit: 5, ScoreThreshold: 0.6})

	if result.UsedContext {
		t.Error("UsedContext = true on an empty index")
	}
	if result.Answer == "" {
		t.Error("answer is empty; the caller must always get a usable answer")
	}
	if result.Reason != store.ReasonNoContextsFound {
		t.Errorf("reason = %q, want %q", result.Reason, store.ReasonNoContextsFound)
	}
	if len(result.ContextSources) != 1 || result.ContextSources[0].Reason != store.ReasonNoContextsFound {
		t.Errorf("context sources = %+v, want a single reason descriptor", result.ContextSources)
	}
	if result.ContextSources[0].Text != "" {
		t.Errorf("reason descriptor carries text: %q", result.ContextSources[0].Text)
	}
}

func TestExecuteGroundedHappyPath(t *testing.T) {
	// Recency blending gives the oldest document recency 0, so its
	// blended score is 0.7x the raw score; fixtures account for that.
	now := time.Now().Unix()
	vs := &fakeVectorStore{
		collections: []string{"docs"},
		byCollection: map[string][]store.Document{
			"docs": {
				{ID: "d1", Collection: "docs", Score: 0.99, Text: "refunds take 30 days", Timestamp: now},
				{ID: "d2", Collection: "docs", Score: 1.0, Text: "refunds need a receipt", Timestamp: now - 60},
			},
		},
	}
	provider := &fakeLLM{
		conflict:   "NO_CONFLICT",
		generation: "ANSWER: Refunds take 30 days and need a receipt.\nSUMMARY: 30 days with receipt.",
	}
	p := newTestPipeline(vs, provider)

	result := p.Execute(context.Background(), Request{Query: "refund policy?", Limit: 5, ScoreThreshold: 0.6})

	if !result.UsedContext {
		t.Fatalf("UsedContext = false, result = %+v", result)
	}
	if len(result.ContextSources) != 2 {
		t.Errorf("context sources = %d, want 2", len(result.ContextSources))
	}
	if result.ConflictResolutionApplied {
		t.Error("conflict resolution applied with NO_CONFLICT verdict")
	}
	if result.Summary != "30 days with receipt." {
		t.Errorf("summary = %q", result.Summary)
	}
}

func TestExecuteRetrievalFailureDegrades(t *testing.T) {
	vs := &fakeVectorStore{listErr: errors.New("qdrant down")}
	provider := &fakeLLM{generation: "ANSWER: knowledge only\nSUMMARY: s"}
	p := newTestPipeline(vs, provider)

	result := p.Execute(context.Background(), Request{Query: "q", Limit: 5, ScoreThreshold: 0.6})
	if result.UsedContext || result.Reason != store.ReasonRetrievalFailed {
		t.Errorf("result = %+v, want retrieval_failed degrade", result)
	}
	if result.Answer != "knowledge only" {
		t.Errorf("answer = %q", result.Answer)
	}
}

func TestExecuteExplicitCollectionsBypassRouting(t *testing.T) {
	now := time.Now().Unix()
	vs := &fakeVectorStore{
		// ListCollections would fail; explicit collections must not call it.
		listErr: errors.New("must not be called"),
		byCollection: map[string][]store.Document{
			"finance": {{ID: "f1", Collection: "finance", Score: 1.0, Text: "rates rose", Timestamp: now}},
		},
	}
	provider := &fakeLLM{
		conflict:   "NO_CONFLICT",
		generation: "ANSWER: Rates rose.\nSUMMARY: rates",
	}
	p := newTestPipeline(vs, provider)

	result := p.Execute(context.Background(), Request{
		Query:          "what happened to rates?",
		Collections:    []string{"finance"},
		Limit:          5,
		ScoreThreshold: 0.6,
	})
	if !result.UsedContext {
		t.Errorf("result = %+v, want grounded answer from explicit collection", result)
	}
}

func TestExecuteNotRelevantDegradesWithReason(t *testing.T) {
	now := time.Now().Unix()
	vs := &fakeVectorStore{
		collections: []string{"docs"},
		byCollection: map[string][]store.Document{
			// Blends to 0.7: at the similarity floor, below high confidence,
			// below the 0.9 override threshold.
			"docs": {{ID: "d1", Collection: "docs", Score: 1.0, Text: "unrelated text", Timestamp: now}},
		},
	}
	provider := &fakeLLM{
		relevance:  `{"is_relevant": false, "explanation": "off topic"}`,
		generation: "ANSWER: knowledge\nSUMMARY: s",
	}
	p := newTestPipeline(vs, provider)

	result := p.Execute(context.Background(), Request{Query: "q", Limit: 5, ScoreThreshold: 0.9})
	if result.UsedContext {
		t.Error("UsedContext = true after a negative relevance verdict")
	}
	if result.Reason != store.ReasonNotRelevant {
		t.Errorf("reason = %q, want %q", result.Reason, store.ReasonNotRelevant)
	}
	if len(result.ContextSources) != 1 || result.ContextSources[0].Reason != store.ReasonNotRelevant {
		t.Errorf("context sources = %+v, want a single not_relevant descriptor", result.ContextSources)
	}
}

func TestExecuteRoutingMissSearchesAllCollections(t *testing.T) {
	now := time.Now().Unix()
	vs := &fakeVectorStore{
		collections: []string{"alpha", "beta"},
		byCollection: map[string][]store.Document{
			"alpha": {{ID: "a1", Collection: "alpha", Score: 1.0, Text: "the answer", Timestamp: now}},
			"beta":  {{ID: "b1", Collection: "beta", Score: 0.2, Text: "noise", Timestamp: now - 60}},
		},
	}
	provider := &fakeLLM{
		conflict:   "NO_CONFLICT",
		generation: "ANSWER: The answer.\nSUMMARY: found it",
	}
	// Query embedding orthogonal to every collection descriptor, so no
	// collection clears the routing threshold.
	embedder := &descriptorMissEmbedder{}
	p := newRoutedTestPipeline(vs, provider, embedder)

	result := p.Execute(context.Background(), Request{Query: "where is the answer?", Limit: 5, ScoreThreshold: 0.6})
	if !result.UsedContext {
		t.Fatalf("result = %+v, want a grounded answer via search-all fallback", result)
	}
	if len(result.ContextSources) != 1 || result.ContextSources[0].Topic != "alpha" {
		t.Errorf("context sources = %+v, want the alpha document", result.ContextSources)
	}
}

func TestExecuteTotalGenerationFailureYieldsApology(t *testing.T) {
	vs := &fakeVectorStore{collections: []string{"docs"}, byCollection: map[string][]store.Document{}}
	provider := &fakeLLM{genErr: errors.New("llm down")}
	p := newTestPipeline(vs, provider)

	result := p.Execute(context.Background(), Request{Query: "q", Limit: 5, ScoreThreshold: 0.6})
	if result.Answer != answer.Apology {
		t.Errorf("answer = %q, want apology", result.Answer)
	}
	if result.Reason != store.ReasonGenerationFailed {
		t.Errorf("reason = %q, want %q", result.Reason, store.ReasonGenerationFailed)
	}
}

func TestExecuteConflictResolutionPrunesStaleDoc(t *testing.T) {
	now := time.Now().Unix()
	vs := &fakeVectorStore{
		collections: []string{"docs"},
		byCollection: map[string][]store.Document{
			"docs": {
				{ID: "fresh", Collection: "docs", Score: 0.98, Text: "price is 20", Timestamp: now},
				{ID: "stale", Collection: "docs", Score: 1.0, Text: "price is 10", Timestamp: now - 3*86400},
			},
		},
	}
	provider := &fakeLLM{
		conflict:   "CONFLICT",
		generation: "ANSWER: The price is 20.\nSUMMARY: price 20",
	}
	p := newTestPipeline(vs, provider)

	result := p.Execute(context.Background(), Request{Query: "price?", Limit: 5, ScoreThreshold: 0.6})
	if !result.ConflictResolutionApplied {
		t.Fatal("conflict resolution not applied")
	}
	if len(result.ContextSources) != 1 {
		t.Fatalf("context sources = %+v, want only the fresh document", result.ContextSources)
	}
	if !strings.Contains(result.ContextSources[0].Text, "20") {
		t.Errorf("surviving source = %+v, want the fresh document", result.ContextSources[0])
	}
}
