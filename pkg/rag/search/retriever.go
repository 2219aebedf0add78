package search

import (
	"context"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"ai-rag-be/pkg/embedding"
	"ai-rag-be/pkg/store"
	"ai-rag-be/pkg/vector"
)

// ConcurrentRetriever fans one query out across all routed collections.
// A failed collection contributes zero documents instead of failing the
// batch; only a failed query embedding aborts retrieval.
type ConcurrentRetriever struct {
	embedder embedding.Provider
	vectors  vector.Store
	logger   *log.Logger
}

func NewConcurrentRetriever(embedder embedding.Provider, vectors vector.Store, logger *log.Logger) *ConcurrentRetriever {
	return &ConcurrentRetriever{
		embedder: embedder,
		vectors:  vectors,
		logger:   logger,
	}
}

// Retrieve searches every routed collection concurrently and returns the
// merged result, best first. Scores are weighted by routing confidence.
// A non-empty filter that matches nothing in a collection is retried
// unfiltered there, so an over-eager filter never blanks the collection.
// Ordering is deterministic regardless of goroutine completion order.
func (r *ConcurrentRetriever) Retrieve(ctx context.Context, queryText string, routes []store.CollectionScore, perCollectionLimit int, filter vector.Filter) ([]store.Document, error) {
	if len(routes) == 0 {
		return nil, nil
	}
	if perCollectionLimit <= 0 {
		perCollectionLimit = 5
	}

	queryVec, err := r.embedder.Generate(ctx, queryText, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, store.NewError(store.KindUpstreamUnavailable, "search.embed_query", err)
	}

	var (
		mu     sync.Mutex
		merged []store.Document
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(routes))

	for _, route := range routes {
		g.Go(func() error {
			docs, err := r.vectors.Search(gctx, route.Collection, queryVec, perCollectionLimit, filter)
			if err != nil {
				// Partial failure: log and move on with the other collections.
				r.logger.Printf("[SEARCH] Collection %s failed: %v", route.Collection, err)
				return nil
			}
			if len(docs) == 0 && len(filter) > 0 {
				r.logger.Printf("[SEARCH] Filter matched nothing in %s, retrying unfiltered", route.Collection)
				docs, err = r.vectors.Search(gctx, route.Collection, queryVec, perCollectionLimit, nil)
				if err != nil {
					r.logger.Printf("[SEARCH] Collection %s failed unfiltered: %v", route.Collection, err)
					return nil
				}
			}

			for i := range docs {
				if route.Confidence < 1 {
					docs[i].Score *= route.Confidence
				}
			}

			mu.Lock()
			merged = append(merged, docs...)
			mu.Unlock()

			r.logger.Printf("[SEARCH] Collection %s returned %d documents", route.Collection, len(docs))
			return nil
		})
	}

	// Workers never return errors; Wait is just the join point.
	_ = g.Wait()

	sortDocuments(merged)
	return merged, nil
}

// sortDocuments orders by score descending, breaking ties by newer
// timestamp, then collection name ascending.
func sortDocuments(docs []store.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		if docs[i].Timestamp != docs[j].Timestamp {
			return docs[i].Timestamp > docs[j].Timestamp
		}
		return docs[i].Collection < docs[j].Collection
	})
}
