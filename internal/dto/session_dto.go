package dto

import "time"

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionExistsResponse struct {
	SessionID string `json:"session_id"`
	Exists    bool   `json:"exists"`
}

type MessagePairResponse struct {
	Count   int       `json:"count"`
	Query   string    `json:"query"`
	Answer  string    `json:"answer"`
	Summary string    `json:"summary,omitempty"`
	AskedAt time.Time `json:"asked_at"`
}

type SessionHistoryResponse struct {
	SessionID string                `json:"session_id"`
	Count     int                   `json:"count"`
	CreatedAt time.Time             `json:"created_at"`
	Messages  []MessagePairResponse `json:"messages"`
}
