package answer

import (
	"context"
	"log"
	"strings"

	"ai-rag-be/pkg/llm"
)

// Apology is the terminal fallback when even knowledge-mode generation
// fails. The pipeline never surfaces a generation error to the caller.
const Apology = "I'm sorry, I wasn't able to produce an answer right now. Please try again in a moment."

// Marker convention for splitting the model response into answer and
// summary.
const (
	answerMarker  = "ANSWER:"
	summaryMarker = "SUMMARY:"
)

const summaryFallbackLen = 200

// Temperatures per mode. Grounded answers stay close to the evidence,
// knowledge answers are allowed to be generative.
const (
	groundedTemperature  = 0.2
	knowledgeTemperature = 0.7
)

// Response is the synthesizer's terminal output.
type Response struct {
	Answer      string
	Summary     string
	UsedContext bool
	Failed      bool
}

// Synthesizer produces the final answer, grounded in retrieved context
// when it is available and trustworthy, from model knowledge otherwise.
type Synthesizer struct {
	provider llm.LLMProvider
	logger   *log.Logger
}

func NewSynthesizer(provider llm.LLMProvider, logger *log.Logger) *Synthesizer {
	return &Synthesizer{provider: provider, logger: logger}
}

// Grounded answers from the packed context. An empty or failed grounded
// generation falls back to the knowledge path instead of erroring, so
// the caller always gets a usable response.
func (s *Synthesizer) Grounded(ctx context.Context, queryText, contextStr string, history []llm.Message) Response {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.buildGroundedSystem(contextStr)})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: queryText})

	raw, err := s.provider.Chat(ctx, messages, llm.WithTemperature(groundedTemperature))
	if err != nil || strings.TrimSpace(raw) == "" {
		s.logger.Printf("[ANSWER] Grounded generation unusable, falling back to knowledge mode: %v", err)
		resp := s.Knowledge(ctx, queryText, history)
		resp.UsedContext = false
		return resp
	}

	answer, summary := parseAnswer(raw)
	return Response{Answer: answer, Summary: summary, UsedContext: true}
}

// Knowledge answers purely from the model, used when no relevant context
// exists. Generation failure here is terminal and degrades to the
// apology message.
func (s *Synthesizer) Knowledge(ctx context.Context, queryText string, history []llm.Message) Response {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.buildKnowledgeSystem()})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: queryText})

	raw, err := s.provider.Chat(ctx, messages, llm.WithTemperature(knowledgeTemperature))
	if err != nil || strings.TrimSpace(raw) == "" {
		s.logger.Printf("[ANSWER] Knowledge generation failed: %v", err)
		return Response{Answer: Apology, Summary: Apology, Failed: true}
	}

	answer, summary := parseAnswer(raw)
	return Response{Answer: answer, Summary: summary}
}

func (s *Synthesizer) buildGroundedSystem(contextStr string) string {
	var sb strings.Builder
	sb.WriteString("Answer the user's question using the documents below.\n")
	sb.WriteString("When documents disagree, trust the most recent one.\n")
	sb.WriteString("Do not invent facts that are not in the documents.\n\n")
	sb.WriteString("<context>\n")
	sb.WriteString(contextStr)
	sb.WriteString("\n</context>\n\n")
	sb.WriteString(formatInstruction)
	return sb.String()
}

func (s *Synthesizer) buildKnowledgeSystem() string {
	var sb strings.Builder
	sb.WriteString("Answer the user's question from your own knowledge.\n")
	sb.WriteString("Be direct and factual; say so when you are unsure.\n\n")
	sb.WriteString(formatInstruction)
	return sb.String()
}

const formatInstruction = "Format your response as:\n" +
	"ANSWER: <the full answer>\n" +
	"SUMMARY: <one sentence summary>"

// parseAnswer splits a response on the ANSWER:/SUMMARY: markers. When
// the markers are missing the whole response is the answer and the
// summary is a truncated prefix of it.
func parseAnswer(raw string) (string, string) {
	raw = strings.TrimSpace(raw)

	answerIdx := strings.Index(raw, answerMarker)
	summaryIdx := strings.LastIndex(raw, summaryMarker)

	if answerIdx != -1 && summaryIdx != -1 && summaryIdx > answerIdx {
		answer := strings.TrimSpace(raw[answerIdx+len(answerMarker) : summaryIdx])
		summary := strings.TrimSpace(raw[summaryIdx+len(summaryMarker):])
		if answer != "" {
			return answer, summary
		}
	}

	summary := raw
	if len(summary) > summaryFallbackLen {
		summary = summary[:summaryFallbackLen] + "..."
	}
	return raw, summary
}
