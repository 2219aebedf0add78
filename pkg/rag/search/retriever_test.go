package search

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"ai-rag-be/pkg/store"
	"ai-rag-be/pkg/vector"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Generate(_ context.Context, _, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

type fakeVectorStore struct {
	byCollection      map[string][]store.Document
	failing           map[string]bool
	emptyWhenFiltered bool

	mu       sync.Mutex
	searches int
}

func (f *fakeVectorStore) Search(_ context.Context, collection string, _ []float32, _ int, filter vector.Filter) ([]store.Document, error) {
	f.mu.Lock()
	f.searches++
	f.mu.Unlock()
	if f.failing[collection] {
		return nil, errors.New(collection + " unreachable")
	}
	if f.emptyWhenFiltered && len(filter) > 0 {
		return nil, nil
	}
	docs := make([]store.Document, len(f.byCollection[collection]))
	copy(docs, f.byCollection[collection])
	return docs, nil
}

func (f *fakeVectorStore) ListCollections(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(f.byCollection))
	for name := range f.byCollection {
		names = append(names, name)
	}
	return names, nil
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestRetrieveMergesAndWeightsByConfidence(t *testing.T) {
	vs := &fakeVectorStore{byCollection: map[string][]store.Document{
		"finance": {{ID: "f1", Collection: "finance", Score: 0.9}},
		"weather": {{ID: "w1", Collection: "weather", Score: 0.9}},
	}}
	r := NewConcurrentRetriever(&fakeEmbedder{}, vs, discardLogger())

	routes := []store.CollectionScore{
		{Collection: "finance", Confidence: 1.0},
		{Collection: "weather", Confidence: 0.5},
	}
	docs, err := r.Retrieve(context.Background(), "q", routes, 5, nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}
	if docs[0].ID != "f1" {
		t.Errorf("best doc = %s, want f1 (unweighted)", docs[0].ID)
	}
	if docs[1].Score != 0.45 {
		t.Errorf("weighted score = %f, want 0.45", docs[1].Score)
	}
}

func TestRetrieveToleratesCollectionFailure(t *testing.T) {
	vs := &fakeVectorStore{
		byCollection: map[string][]store.Document{
			"finance": {{ID: "f1", Collection: "finance", Score: 0.8}},
		},
		failing: map[string]bool{"weather": true},
	}
	r := NewConcurrentRetriever(&fakeEmbedder{}, vs, discardLogger())

	routes := []store.CollectionScore{
		{Collection: "finance", Confidence: 1.0},
		{Collection: "weather", Confidence: 1.0},
	}
	docs, err := r.Retrieve(context.Background(), "q", routes, 5, nil)
	if err != nil {
		t.Fatalf("Retrieve must not fail on partial collection failure: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "f1" {
		t.Errorf("docs = %+v, want only f1", docs)
	}
}

func TestRetrieveEmbeddingFailureIsFatal(t *testing.T) {
	r := NewConcurrentRetriever(&fakeEmbedder{err: errors.New("down")}, &fakeVectorStore{}, discardLogger())

	_, err := r.Retrieve(context.Background(), "q", []store.CollectionScore{{Collection: "a", Confidence: 1}}, 5, nil)
	if err == nil {
		t.Fatal("expected error when the query embedding fails")
	}
	if store.KindOf(err) != store.KindUpstreamUnavailable {
		t.Errorf("kind = %v, want upstream_unavailable", store.KindOf(err))
	}
}

func TestRetrieveRetriesUnfilteredWhenFilterMatchesNothing(t *testing.T) {
	vs := &fakeVectorStore{
		byCollection: map[string][]store.Document{
			"finance": {{ID: "f1", Collection: "finance", Score: 0.8}},
		},
		emptyWhenFiltered: true,
	}
	r := NewConcurrentRetriever(&fakeEmbedder{}, vs, discardLogger())

	routes := []store.CollectionScore{{Collection: "finance", Confidence: 1.0}}
	docs, err := r.Retrieve(context.Background(), "q", routes, 5, vector.Filter{"title": "missing"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "f1" {
		t.Fatalf("docs = %+v, want the unfiltered fallback result", docs)
	}
	if vs.searches != 2 {
		t.Errorf("searches = %d, want filtered then unfiltered", vs.searches)
	}
}

func TestSortDocumentsDeterministicTieBreaks(t *testing.T) {
	docs := []store.Document{
		{ID: "old", Collection: "b", Score: 0.7, Timestamp: 100},
		{ID: "new", Collection: "b", Score: 0.7, Timestamp: 200},
		{ID: "a-coll", Collection: "a", Score: 0.7, Timestamp: 200},
		{ID: "top", Collection: "z", Score: 0.9, Timestamp: 0},
	}
	sortDocuments(docs)

	wantOrder := []string{"top", "a-coll", "new", "old"}
	for i, want := range wantOrder {
		if docs[i].ID != want {
			t.Fatalf("position %d = %s, want %s (full order %+v)", i, docs[i].ID, want, docs)
		}
	}
}
