package compress

import (
	"context"
	"log"
	"strings"

	"ai-rag-be/pkg/llm"
	"ai-rag-be/pkg/store"
)

// NoRelevantContent is the sentinel the extraction prompt instructs the
// model to emit when a document contains nothing useful for the query.
const NoRelevantContent = "NO_RELEVANT_CONTENT"

// Compressor filters retrieved documents by score and shrinks the
// borderline ones to only their query-relevant sentences.
type Compressor struct {
	provider            llm.LLMProvider
	similarityThreshold float64
	highConfidence      float64
	logger              *log.Logger
}

func NewCompressor(provider llm.LLMProvider, similarityThreshold, highConfidence float64, logger *log.Logger) *Compressor {
	return &Compressor{
		provider:            provider,
		similarityThreshold: similarityThreshold,
		highConfidence:      highConfidence,
		logger:              logger,
	}
}

// Compress drops documents below the similarity floor, then compresses
// the borderline survivors through the LLM. With two or more
// high-confidence documents compression is skipped entirely: the strong
// evidence is used verbatim. Compression never fails a document; an LLM
// error keeps the original text.
func (c *Compressor) Compress(ctx context.Context, docs []store.Document, queryText string) []store.Document {
	filtered := make([]store.Document, 0, len(docs))
	highConfidence := 0
	for _, doc := range docs {
		if doc.Score < c.similarityThreshold {
			continue
		}
		if doc.Score >= c.highConfidence {
			highConfidence++
		}
		filtered = append(filtered, doc)
	}

	if highConfidence >= 2 {
		c.logger.Printf("[COMPRESS] %d high-confidence documents, skipping compression", highConfidence)
		return filtered
	}

	out := make([]store.Document, 0, len(filtered))
	for _, doc := range filtered {
		if doc.Score >= c.highConfidence {
			out = append(out, doc)
			continue
		}

		extracted, err := c.provider.Generate(ctx, c.buildExtractionPrompt(queryText, doc.Text),
			llm.WithTemperature(0.1))
		if err != nil {
			c.logger.Printf("[COMPRESS] Extraction failed for %s, keeping original: %v", doc.ID, err)
			out = append(out, doc)
			continue
		}

		extracted = strings.TrimSpace(extracted)
		if strings.Contains(extracted, NoRelevantContent) {
			c.logger.Printf("[COMPRESS] Document %s judged irrelevant, dropped", doc.ID)
			continue
		}
		if extracted == "" {
			out = append(out, doc)
			continue
		}

		doc.Text = extracted
		out = append(out, doc)
	}
	return out
}

func (c *Compressor) buildExtractionPrompt(queryText, docText string) string {
	var sb strings.Builder
	sb.WriteString("Extract only the sentences from the document that are relevant to the question.\n")
	sb.WriteString("Keep the original wording. Do not summarize or add anything.\n")
	sb.WriteString("If nothing in the document is relevant, respond with exactly: ")
	sb.WriteString(NoRelevantContent)
	sb.WriteString("\n\n<question>\n")
	sb.WriteString(queryText)
	sb.WriteString("\n</question>\n\n<document>\n")
	sb.WriteString(docText)
	sb.WriteString("\n</document>")
	return sb.String()
}
