package conflict

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"ai-rag-be/pkg/llm"
	"ai-rag-be/pkg/store"
)

// Verdict tokens the detection prompt is instructed to answer with.
const (
	verdictConflict   = "CONFLICT"
	verdictNoConflict = "NO_CONFLICT"
)

// recencyWindow is how far behind the newest document a conflicting
// document may be and still survive resolution.
const recencyWindow = 86400 * time.Second

// Resolver detects contradictory evidence across retrieved documents
// and resolves it in favor of recency.
type Resolver struct {
	provider llm.LLMProvider
	logger   *log.Logger
}

func NewResolver(provider llm.LLMProvider, logger *log.Logger) *Resolver {
	return &Resolver{provider: provider, logger: logger}
}

// Resolve returns the surviving documents and whether resolution was
// applied. Detection failure fails open: all documents are kept. On a
// detected conflict only the newest document and those within the
// recency window of it survive; untimestamped documents count as oldest
// and are evicted first.
func (r *Resolver) Resolve(ctx context.Context, docs []store.Document) ([]store.Document, bool) {
	if len(docs) < 2 {
		return docs, false
	}

	response, err := r.provider.Generate(ctx, r.buildPrompt(docs), llm.WithTemperature(0.1))
	if err != nil {
		r.logger.Printf("[CONFLICT] Detection failed, keeping all documents: %v", err)
		return docs, false
	}

	if !hasConflict(response) {
		return docs, false
	}

	resolved := keepRecent(docs)
	r.logger.Printf("[CONFLICT] Conflict detected, kept %d of %d documents", len(resolved), len(docs))
	return resolved, true
}

// hasConflict reads the binary verdict. NO_CONFLICT contains CONFLICT
// as a substring, so it is checked first; anything unrecognizable
// counts as no conflict.
func hasConflict(response string) bool {
	upper := strings.ToUpper(strings.TrimSpace(response))
	if strings.Contains(upper, verdictNoConflict) {
		return false
	}
	return strings.Contains(upper, verdictConflict)
}

func keepRecent(docs []store.Document) []store.Document {
	sorted := make([]store.Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		// Timestamp 0 (unknown) sorts last.
		if sorted[i].Timestamp == 0 {
			return false
		}
		if sorted[j].Timestamp == 0 {
			return true
		}
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	newest := sorted[0].Timestamp
	if newest == 0 {
		// Nothing is dated; recency cannot arbitrate, keep the best-scored doc.
		return sorted[:1]
	}

	cutoff := newest - int64(recencyWindow.Seconds())
	kept := sorted[:0:len(sorted)]
	for _, doc := range sorted {
		if doc.Timestamp >= cutoff && doc.Timestamp != 0 {
			kept = append(kept, doc)
		}
	}
	return kept
}

func (r *Resolver) buildPrompt(docs []store.Document) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You detect factual contradictions between documents.\n")
	prompt.WriteString("Different topics or complementary details are NOT a conflict.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<documents>\n")
	for i, doc := range docs {
		excerpt := doc.Text
		if len(excerpt) > 500 {
			excerpt = excerpt[:500] + "..."
		}
		date := "unknown date"
		if doc.Timestamp > 0 {
			date = time.Unix(doc.Timestamp, 0).UTC().Format("2006-01-02")
		}
		prompt.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, date, excerpt))
	}
	prompt.WriteString("</documents>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with exactly one word: CONFLICT or NO_CONFLICT\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}
