package store

// Reason tags explaining why a response carries no context sources.
const (
	ReasonNoContextsFound  = "no_contexts_found"
	ReasonNotRelevant      = "not_relevant"
	ReasonRetrievalFailed  = "retrieval_failed"
	ReasonGenerationFailed = "generation_failed"
)

// ContextSource is the caller-facing citation for one document that
// grounded the answer. Text is truncated to a preview. On paths where
// no document grounded the answer, a single descriptor carrying only
// the Reason tag is emitted instead.
type ContextSource struct {
	Text      string  `json:"text,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
	Topic     string  `json:"topic,omitempty"`
	Title     string  `json:"title,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// RAGResult is the terminal output of the query pipeline. The pipeline
// guarantees a valid result on every path, including total retrieval or
// generation failure.
type RAGResult struct {
	Answer                    string
	Summary                   string
	UsedContext               bool
	ContextSources            []ContextSource
	Reason                    string
	ConflictResolutionApplied bool
	SessionID                 string
}

const sourcePreviewLen = 200

// NewContextSource builds a citation from a document, truncating the text
// to a short preview.
func NewContextSource(doc Document) ContextSource {
	text := doc.Text
	if len(text) > sourcePreviewLen {
		text = text[:sourcePreviewLen] + "..."
	}
	return ContextSource{
		Text:      text,
		Score:     doc.Score,
		Timestamp: doc.Timestamp,
		Topic:     doc.Collection,
		Title:     doc.Title,
	}
}

// NewReasonSource builds the descriptor emitted in context_sources when
// the answer carries no grounding documents.
func NewReasonSource(reason string) ContextSource {
	return ContextSource{Reason: reason}
}
