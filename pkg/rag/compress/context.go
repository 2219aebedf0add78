package compress

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ai-rag-be/pkg/store"
)

const (
	// Rough chars-per-token factor used to convert a token budget into a
	// character budget without a tokenizer round trip.
	charsPerToken = 4

	truncationMarker = "\n[... document truncated to fit the context budget ...]"
	omissionMarker   = "\n[... additional documents omitted, context budget reached ...]"
)

// BuildContext packs documents into a single prompt-ready context
// string, best score first, within an approximate token budget. If even
// the first document overflows the budget it is truncated rather than
// dropped, so the model always sees the strongest evidence.
func BuildContext(docs []store.Document, tokenBudget int) string {
	if len(docs) == 0 {
		return ""
	}
	if tokenBudget <= 0 {
		tokenBudget = 2000
	}
	charBudget := tokenBudget * charsPerToken

	ordered := make([]store.Document, len(docs))
	copy(ordered, docs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	var sb strings.Builder
	for i, doc := range ordered {
		block := formatDocument(i+1, doc)

		if sb.Len()+len(block) > charBudget {
			if sb.Len() == 0 {
				keep := charBudget - len(truncationMarker)
				if keep < 0 {
					keep = 0
				}
				if keep > len(block) {
					keep = len(block)
				}
				sb.WriteString(block[:keep])
				sb.WriteString(truncationMarker)
			} else {
				sb.WriteString(omissionMarker)
			}
			break
		}
		sb.WriteString(block)
	}
	return sb.String()
}

func formatDocument(index int, doc store.Document) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[Document %d]", index))
	if doc.Title != "" {
		sb.WriteString(fmt.Sprintf(" %s", doc.Title))
	}
	sb.WriteString(fmt.Sprintf("\nCollection: %s | Score: %.3f", doc.Collection, doc.Score))
	if doc.Timestamp > 0 {
		sb.WriteString(" | Date: ")
		sb.WriteString(time.Unix(doc.Timestamp, 0).UTC().Format("2006-01-02"))
	}
	sb.WriteString("\n")
	for _, kv := range sortedMetadata(doc.Metadata) {
		sb.WriteString(fmt.Sprintf("%s: %v\n", kv.key, kv.value))
	}
	sb.WriteString(doc.Text)
	sb.WriteString("\n\n")
	return sb.String()
}

type metaEntry struct {
	key   string
	value any
}

func sortedMetadata(meta map[string]any) []metaEntry {
	if len(meta) == 0 {
		return nil
	}
	entries := make([]metaEntry, 0, len(meta))
	for key, value := range meta {
		entries = append(entries, metaEntry{key, value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	return entries
}
