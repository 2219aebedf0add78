package service

import (
	"context"

	"ai-rag-be/internal/dto"
	"ai-rag-be/pkg/session"
)

type ISessionService interface {
	Create(ctx context.Context) (*dto.SessionResponse, error)
	Exists(ctx context.Context, id string) (*dto.SessionExistsResponse, error)
	Get(ctx context.Context, id string) (*dto.SessionHistoryResponse, error)
}

type sessionService struct {
	sessions *session.Manager
}

func NewSessionService(sessions *session.Manager) ISessionService {
	return &sessionService{sessions: sessions}
}

func (s *sessionService) Create(ctx context.Context) (*dto.SessionResponse, error) {
	sess, err := s.sessions.Create(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.SessionResponse{SessionID: sess.ID, CreatedAt: sess.CreatedAt}, nil
}

func (s *sessionService) Exists(ctx context.Context, id string) (*dto.SessionExistsResponse, error) {
	exists, err := s.sessions.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.SessionExistsResponse{SessionID: id, Exists: exists}, nil
}

func (s *sessionService) Get(ctx context.Context, id string) (*dto.SessionHistoryResponse, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	messages := make([]dto.MessagePairResponse, 0, len(sess.Messages))
	for _, pair := range sess.Messages {
		messages = append(messages, dto.MessagePairResponse{
			Count:   pair.Count,
			Query:   pair.Query.Content,
			Answer:  pair.Answer.Content,
			Summary: pair.Answer.Summary,
			AskedAt: pair.Query.Timestamp,
		})
	}

	return &dto.SessionHistoryResponse{
		SessionID: sess.ID,
		Count:     sess.Count,
		CreatedAt: sess.CreatedAt,
		Messages:  messages,
	}, nil
}
