package router

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"ai-rag-be/pkg/embedding"
	"ai-rag-be/pkg/store"
)

// CollectionRouter decides which collections a query should be searched
// against by comparing the query embedding to a short descriptor
// embedding per collection. Descriptor embeddings are stable per
// collection name, so they are cached.
type CollectionRouter struct {
	embedder  embedding.Provider
	threshold float64
	cache     *cache.Cache
	logger    *log.Logger
}

func NewCollectionRouter(embedder embedding.Provider, threshold float64, logger *log.Logger) *CollectionRouter {
	return &CollectionRouter{
		embedder:  embedder,
		threshold: threshold,
		cache:     cache.New(12*time.Hour, 1*time.Hour),
		logger:    logger,
	}
}

// Route scores each available collection against the query and returns
// the qualifying ones, highest confidence first. A single available
// collection is returned with confidence 1.0 without any scoring.
func (r *CollectionRouter) Route(ctx context.Context, queryText string, available []string) ([]store.CollectionScore, error) {
	if len(available) == 0 {
		return nil, nil
	}
	if len(available) == 1 {
		return []store.CollectionScore{{Collection: available[0], Confidence: 1.0}}, nil
	}

	queryVec, err := r.embedder.Generate(ctx, queryText, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, store.NewError(store.KindUpstreamUnavailable, "router.embed_query", err)
	}

	scores := make([]store.CollectionScore, 0, len(available))
	for _, name := range available {
		descVec, err := r.descriptorEmbedding(ctx, name)
		if err != nil {
			r.logger.Printf("[ROUTER] Skipping collection %s: descriptor embedding failed: %v", name, err)
			continue
		}

		sim := cosineSimilarity(queryVec, descVec)
		r.logger.Printf("[ROUTER] %s similarity=%.3f (threshold=%.2f)", name, sim, r.threshold)
		if sim >= r.threshold {
			scores = append(scores, store.CollectionScore{Collection: name, Confidence: sim})
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Confidence > scores[j].Confidence
	})
	return scores, nil
}

func (r *CollectionRouter) descriptorEmbedding(ctx context.Context, name string) ([]float32, error) {
	if cached, found := r.cache.Get(name); found {
		return cached.([]float32), nil
	}

	vec, err := r.embedder.Generate(ctx, "documents about "+name, embedding.TaskSemanticSimilarity)
	if err != nil {
		return nil, err
	}
	r.cache.Set(name, vec, cache.DefaultExpiration)
	return vec, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
