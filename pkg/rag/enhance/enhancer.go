package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"ai-rag-be/pkg/llm"
	"ai-rag-be/pkg/vector"
)

// Enhancer rewrites the raw query into a retrieval-friendly form and
// extracts metadata filters for the vector search. Failure is never
// fatal: the original query with no filter is always a valid outcome.
type Enhancer struct {
	provider llm.LLMProvider
	logger   *log.Logger
}

func NewEnhancer(provider llm.LLMProvider, logger *log.Logger) *Enhancer {
	return &Enhancer{provider: provider, logger: logger}
}

type enhancementResponse struct {
	EnhancedQuery string            `json:"enhanced_query"`
	Filters       map[string]string `json:"filters"`
}

// Enhance returns the query text to embed and the payload filter to
// search with. Any LLM or parse failure degrades to the original query
// and a nil filter.
func (e *Enhancer) Enhance(ctx context.Context, queryText string) (string, vector.Filter) {
	response, err := e.provider.Generate(ctx, e.buildPrompt(queryText), llm.WithTemperature(0.3))
	if err != nil {
		e.logger.Printf("[ENHANCE] Enhancement failed, using original query: %v", err)
		return queryText, nil
	}

	parsed, err := parseEnhancement(response)
	if err != nil {
		e.logger.Printf("[ENHANCE] %v, using original query", err)
		return queryText, nil
	}

	enhanced := strings.TrimSpace(parsed.EnhancedQuery)
	if enhanced == "" {
		enhanced = queryText
	}

	var filter vector.Filter
	if len(parsed.Filters) > 0 {
		filter = vector.Filter(parsed.Filters)
	}
	e.logger.Printf("[ENHANCE] %q -> %q with %d filter(s)", queryText, enhanced, len(filter))
	return enhanced, filter
}

func (e *Enhancer) buildPrompt(queryText string) string {
	var sb strings.Builder
	sb.WriteString("<system>\n")
	sb.WriteString("You rewrite search queries for a vector index and extract structured filters.\n")
	sb.WriteString("The rewritten query must be a standalone search phrase, not an answer.\n")
	sb.WriteString("</system>\n\n")

	sb.WriteString("<query>\n")
	sb.WriteString(queryText)
	sb.WriteString("\n</query>\n\n")

	sb.WriteString("<output_format>\n")
	sb.WriteString("Respond with ONLY valid JSON:\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"enhanced_query\": \"rewritten search query\",\n")
	sb.WriteString("  \"filters\": {}\n")
	sb.WriteString("}\n")
	sb.WriteString("Only add filter keys when the query names a concrete field value,\n")
	sb.WriteString("for example a document title or an exact date.\n")
	sb.WriteString("</output_format>")
	return sb.String()
}

func parseEnhancement(response string) (*enhancementResponse, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON found in enhancement response")
	}

	var parsed enhancementResponse
	if err := json.Unmarshal([]byte(response[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("enhancement unmarshal failed: %w", err)
	}
	return &parsed, nil
}
