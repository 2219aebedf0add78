package events

import (
	"time"

	"ai-rag-be/pkg/store"
)

const TypeQueryAnswered = "QUERY_ANSWERED"

// NewQueryAnswered records one completed query for the downstream logs
// pipeline. The answer text itself is not shipped, only the outcome
// shape.
func NewQueryAnswered(sessionID, query string, result *store.RAGResult) Event {
	return BaseEvent{
		Type: TypeQueryAnswered,
		Data: map[string]interface{}{
			"session_id":          sessionID,
			"query":               query,
			"used_context":        result.UsedContext,
			"source_count":        len(result.ContextSources),
			"reason":              result.Reason,
			"conflict_resolution": result.ConflictResolutionApplied,
		},
		OccurredAt: time.Now().UTC(),
	}
}
