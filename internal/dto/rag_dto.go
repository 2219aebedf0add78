package dto

// QueryRequest is the body of POST /api/rag/v1/query.
type QueryRequest struct {
	Query          string   `json:"query" validate:"required"`
	SessionID      string   `json:"session_id,omitempty"`
	Collections    []string `json:"collections,omitempty"`
	Limit          int      `json:"limit,omitempty" validate:"omitempty,min=1,max=50"`
	ScoreThreshold float64  `json:"score_threshold,omitempty" validate:"omitempty,min=0,max=1"`
	HistoryLimit   int      `json:"history_limit,omitempty" validate:"omitempty,min=0,max=16"`
}

type ContextSourceResponse struct {
	Text      string  `json:"text,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
	Topic     string  `json:"topic,omitempty"`
	Title     string  `json:"title,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

type QueryResponse struct {
	Answer                    string                  `json:"answer"`
	Summary                   string                  `json:"summary"`
	UsedContext               bool                    `json:"used_context"`
	ContextSources            []ContextSourceResponse `json:"context_sources"`
	Reason                    string                  `json:"reason,omitempty"`
	ConflictResolutionApplied bool                    `json:"conflict_resolution_applied"`
	SessionID                 string                  `json:"session_id,omitempty"`
}

type CollectionsResponse struct {
	Collections []string `json:"collections"`
}
