package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-rag-be/internal/dto"
	"ai-rag-be/internal/pkg/logger"
	"ai-rag-be/pkg/events"
	"ai-rag-be/pkg/llm"
	"ai-rag-be/pkg/rag/executor"
	"ai-rag-be/pkg/session"
	"ai-rag-be/pkg/store"
	"ai-rag-be/pkg/vector"
)

const (
	defaultLimit        = 5
	defaultThreshold    = 0.6
	defaultHistoryLimit = 3
)

// EventPublisher is the optional outbound event sink. Nil disables
// publishing.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IRagService interface {
	Query(ctx context.Context, req *dto.QueryRequest) (*dto.QueryResponse, error)
	ListCollections(ctx context.Context) (*dto.CollectionsResponse, error)
}

type ragService struct {
	pipeline  *executor.Pipeline
	sessions  *session.Manager
	vectors   vector.Store
	publisher EventPublisher
	logger    logger.ILogger
}

func NewRagService(
	pipeline *executor.Pipeline,
	sessions *session.Manager,
	vectors vector.Store,
	publisher EventPublisher,
	appLogger logger.ILogger,
) IRagService {
	return &ragService{
		pipeline:  pipeline,
		sessions:  sessions,
		vectors:   vectors,
		publisher: publisher,
		logger:    appLogger,
	}
}

func (s *ragService) Query(ctx context.Context, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, store.NewError(store.KindInvalidQuery, "rag.query",
			errors.New("query must not be empty"))
	}

	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.ScoreThreshold <= 0 {
		req.ScoreThreshold = defaultThreshold
	}
	if req.HistoryLimit <= 0 {
		req.HistoryLimit = defaultHistoryLimit
	}

	history, conversationContext := s.loadHistory(ctx, req.SessionID, req.HistoryLimit)

	result := s.pipeline.Execute(ctx, executor.Request{
		Query:               query,
		Collections:         req.Collections,
		Limit:               req.Limit,
		ScoreThreshold:      req.ScoreThreshold,
		History:             history,
		ConversationContext: conversationContext,
	})
	result.SessionID = req.SessionID

	s.recordExchange(ctx, query, result)
	s.publishAnswered(ctx, query, result)

	return toQueryResponse(result), nil
}

func (s *ragService) ListCollections(ctx context.Context) (*dto.CollectionsResponse, error) {
	names, err := s.vectors.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return &dto.CollectionsResponse{Collections: names}, nil
}

// loadHistory returns the chat-shaped history plus a compact text form
// for the relevance judgment prompt. A missing or failing session
// degrades to an empty history, never to an error.
func (s *ragService) loadHistory(ctx context.Context, sessionID string, historyLimit int) ([]llm.Message, string) {
	if sessionID == "" {
		return nil, ""
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if err != session.ErrNotFound {
			s.logger.Warn("rag", "History load failed, continuing without history",
				map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		}
		return nil, ""
	}

	pairs := sess.Messages
	if len(pairs) > historyLimit {
		pairs = pairs[len(pairs)-historyLimit:]
	}

	var (
		history []llm.Message
		sb      strings.Builder
	)
	for _, pair := range pairs {
		history = append(history,
			llm.Message{Role: llm.RoleUser, Content: pair.Query.Content},
			llm.Message{Role: llm.RoleAssistant, Content: pair.Answer.Content},
		)
		summary := pair.Answer.Summary
		if summary == "" {
			summary = pair.Answer.Content
		}
		sb.WriteString(fmt.Sprintf("Q: %s\nA: %s\n", pair.Query.Content, summary))
	}
	return history, sb.String()
}

func (s *ragService) recordExchange(ctx context.Context, query string, result *store.RAGResult) {
	if result.SessionID == "" {
		return
	}

	metadata := map[string]any{
		"used_context": result.UsedContext,
		"source_count": len(result.ContextSources),
	}
	if _, err := s.sessions.Append(ctx, result.SessionID, query, result.Answer, result.Summary, metadata); err != nil {
		s.logger.Warn("rag", "Failed to append exchange to session",
			map[string]interface{}{"session_id": result.SessionID, "error": err.Error()})
	}
}

func (s *ragService) publishAnswered(ctx context.Context, query string, result *store.RAGResult) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewQueryAnswered(result.SessionID, query, result)); err != nil {
		s.logger.Warn("rag", "Failed to publish query event",
			map[string]interface{}{"error": err.Error()})
	}
}

func toQueryResponse(result *store.RAGResult) *dto.QueryResponse {
	sources := make([]dto.ContextSourceResponse, 0, len(result.ContextSources))
	for _, src := range result.ContextSources {
		sources = append(sources, dto.ContextSourceResponse{
			Text:      src.Text,
			Score:     src.Score,
			Timestamp: src.Timestamp,
			Topic:     src.Topic,
			Title:     src.Title,
			Reason:    src.Reason,
		})
	}

	return &dto.QueryResponse{
		Answer:                    result.Answer,
		Summary:                   result.Summary,
		UsedContext:               result.UsedContext,
		ContextSources:            sources,
		Reason:                    result.Reason,
		ConflictResolutionApplied: result.ConflictResolutionApplied,
		SessionID:                 result.SessionID,
	}
}
