package session

import "time"

// Session is one conversation: a bounded window of message pairs plus a
// monotonic counter that survives eviction. Expiry is owned by the KV
// layer; the struct carries no TTL state.
type Session struct {
	ID        string        `json:"id"`
	Messages  []MessagePair `json:"messages"`
	Count     int           `json:"count"`
	CreatedAt time.Time     `json:"created_at"`
}

// MessagePair is one query/answer exchange. Count is the exchange's
// position in the full conversation, not in the current window.
type MessagePair struct {
	Count  int    `json:"count"`
	Query  Query  `json:"query"`
	Answer Answer `json:"answer"`
}

type Query struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Answer struct {
	Content   string         `json:"content"`
	Summary   string         `json:"summary,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
