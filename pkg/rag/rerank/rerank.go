package rerank

import (
	"sort"

	"ai-rag-be/pkg/store"
)

// Rerank blends retrieval scores with recency: score becomes
// (1-w)*score + w*recency, where recency maps the oldest usable
// timestamp to 0 and "now" to 1. Untimestamped documents get recency 0.
// Pure: returns a new slice, never mutates the input.
func Rerank(docs []store.Document, timeWeight float64, now int64) []store.Document {
	out := make([]store.Document, len(docs))
	copy(out, docs)

	if timeWeight < 0 {
		timeWeight = 0
	}
	if timeWeight > 1 {
		timeWeight = 1
	}
	if timeWeight == 0 || len(out) == 0 {
		return out
	}

	minTS := int64(0)
	for _, doc := range out {
		if doc.Timestamp > 0 && (minTS == 0 || doc.Timestamp < minTS) {
			minTS = doc.Timestamp
		}
	}
	if minTS == 0 {
		// No usable timestamps, nothing to blend.
		return out
	}

	span := now - minTS
	if span < 1 {
		span = 1
	}

	for i := range out {
		recency := 0.0
		if out[i].Timestamp > 0 {
			recency = float64(out[i].Timestamp-minTS) / float64(span)
			if recency > 1 {
				recency = 1
			}
		}
		out[i].Score = (1-timeWeight)*out[i].Score + timeWeight*recency
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
