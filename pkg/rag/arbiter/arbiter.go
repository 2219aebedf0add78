package arbiter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"ai-rag-be/pkg/llm"
	"ai-rag-be/pkg/store"
)

// Judgment methods reported in the verdict.
const (
	MethodNoDocuments    = "no_documents"
	MethodHighConfidence = "high_confidence"
	MethodLLMJudgment    = "llm_judgment"
	MethodScoreFallback  = "score_fallback"
	MethodScoreOverride  = "score_override"
)

// Verdict is the arbiter's decision: whether the retrieved documents
// answer the query, which subset to use, and how the call was decided.
type Verdict struct {
	Relevant    bool
	Documents   []store.Document
	Method      string
	Explanation string
}

type judgmentResponse struct {
	IsRelevant  bool   `json:"is_relevant"`
	Explanation string `json:"explanation"`
}

// Arbiter decides whether retrieved context is actually relevant to the
// query before it is allowed to ground the answer.
type Arbiter struct {
	provider        llm.LLMProvider
	highConfidence  float64
	mediumThreshold float64
	logger          *log.Logger
}

func NewArbiter(provider llm.LLMProvider, highConfidence, mediumThreshold float64, logger *log.Logger) *Arbiter {
	return &Arbiter{
		provider:        provider,
		highConfidence:  highConfidence,
		mediumThreshold: mediumThreshold,
		logger:          logger,
	}
}

// Judge returns the relevance verdict for docs against the query.
// A top score above the high-confidence bar short-circuits without an
// LLM call. An unparsable or failed LLM judgment falls back to the
// medium score threshold. A negative verdict is overridden when any
// document clears the caller's score threshold; the surviving set is
// then narrowed to those documents.
func (a *Arbiter) Judge(ctx context.Context, queryText string, docs []store.Document, conversationContext string, scoreThreshold float64) Verdict {
	if len(docs) == 0 {
		return Verdict{Relevant: false, Method: MethodNoDocuments}
	}

	topScore := docs[0].Score
	for _, doc := range docs[1:] {
		if doc.Score > topScore {
			topScore = doc.Score
		}
	}

	if topScore > a.highConfidence {
		a.logger.Printf("[ARBITER] Top score %.3f above %.2f, relevant without judgment", topScore, a.highConfidence)
		return Verdict{Relevant: true, Documents: docs, Method: MethodHighConfidence}
	}

	verdict := a.judgeWithLLM(ctx, queryText, docs, conversationContext, topScore)

	if !verdict.Relevant {
		if override := a.applyScoreOverride(docs, scoreThreshold); override != nil {
			a.logger.Printf("[ARBITER] Negative verdict overridden: %d documents >= %.2f", len(override), scoreThreshold)
			return Verdict{
				Relevant:    true,
				Documents:   override,
				Method:      MethodScoreOverride,
				Explanation: verdict.Explanation,
			}
		}
	}
	return verdict
}

func (a *Arbiter) judgeWithLLM(ctx context.Context, queryText string, docs []store.Document, conversationContext string, topScore float64) Verdict {
	response, err := a.provider.Generate(ctx, a.buildPrompt(queryText, docs, conversationContext),
		llm.WithTemperature(0.1))
	if err != nil {
		a.logger.Printf("[ARBITER] Judgment call failed, falling back to score threshold: %v", err)
		return a.scoreFallback(docs, topScore)
	}

	judgment, err := parseJudgment(response)
	if err != nil {
		a.logger.Printf("[ARBITER] %v, falling back to score threshold",
			store.NewError(store.KindMalformedJudgment, "arbiter.judge", err))
		return a.scoreFallback(docs, topScore)
	}

	a.logger.Printf("[ARBITER] LLM verdict relevant=%t: %s", judgment.IsRelevant, judgment.Explanation)
	return Verdict{
		Relevant:    judgment.IsRelevant,
		Documents:   docs,
		Method:      MethodLLMJudgment,
		Explanation: judgment.Explanation,
	}
}

func (a *Arbiter) scoreFallback(docs []store.Document, topScore float64) Verdict {
	return Verdict{
		Relevant:  topScore >= a.mediumThreshold,
		Documents: docs,
		Method:    MethodScoreFallback,
	}
}

func (a *Arbiter) applyScoreOverride(docs []store.Document, scoreThreshold float64) []store.Document {
	if scoreThreshold <= 0 {
		return nil
	}
	var qualifying []store.Document
	for _, doc := range docs {
		if doc.Score >= scoreThreshold {
			qualifying = append(qualifying, doc)
		}
	}
	return qualifying
}

const maxJudgedExcerpts = 3

func (a *Arbiter) buildPrompt(queryText string, docs []store.Document, conversationContext string) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You judge whether retrieved documents can answer a question.\n")
	prompt.WriteString("You do NOT answer the question. You only judge relevance.\n")
	prompt.WriteString("</system>\n\n")

	if conversationContext != "" {
		prompt.WriteString("<conversation_history>\n")
		prompt.WriteString(conversationContext)
		prompt.WriteString("\n</conversation_history>\n\n")
	}

	prompt.WriteString("<question>\n")
	prompt.WriteString(queryText)
	prompt.WriteString("\n</question>\n\n")

	prompt.WriteString("<documents>\n")
	limit := len(docs)
	if limit > maxJudgedExcerpts {
		limit = maxJudgedExcerpts
	}
	for i := 0; i < limit; i++ {
		excerpt := docs[i].Text
		if len(excerpt) > 500 {
			excerpt = excerpt[:500] + "..."
		}
		prompt.WriteString(fmt.Sprintf("%d. (score %.3f) %s\n", i+1, docs[i].Score, excerpt))
	}
	prompt.WriteString("</documents>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"is_relevant\": true,\n")
	prompt.WriteString("  \"explanation\": \"Brief reason\"\n")
	prompt.WriteString("}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

func parseJudgment(response string) (*judgmentResponse, error) {
	jsonContent := extractJSON(response)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var judgment judgmentResponse
	if err := json.Unmarshal([]byte(jsonContent), &judgment); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}
	return &judgment, nil
}

func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}
