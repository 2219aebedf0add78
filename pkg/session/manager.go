package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"ai-rag-be/pkg/store"
)

const keyPrefix = "session:"

// Manager is the conversation store: TTL-bounded sessions over a KV
// backend with a sliding window applied on every write.
type Manager struct {
	kv          KV
	ttl         time.Duration
	maxMessages int
	logger      *log.Logger
	now         func() time.Time
}

func NewManager(kv KV, ttl time.Duration, maxMessages int, logger *log.Logger) *Manager {
	if maxMessages <= 0 {
		maxMessages = 16
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Manager{
		kv:          kv,
		ttl:         ttl,
		maxMessages: maxMessages,
		logger:      logger,
		now:         time.Now,
	}
}

// Create stores a fresh empty session and returns it.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	sess := &Session{
		ID:        uuid.New().String(),
		Messages:  []MessagePair{},
		CreatedAt: m.now().UTC(),
	}
	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	m.logger.Printf("[SESSION] Created %s (ttl=%s)", sess.ID, m.ttl)
	return sess, nil
}

func (m *Manager) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := m.kv.Exists(ctx, keyPrefix+id)
	if err != nil {
		return false, store.NewError(store.KindUpstreamUnavailable, "session.exists", err)
	}
	return ok, nil
}

// Get loads a session without touching its TTL or contents.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := m.kv.Get(ctx, keyPrefix+id)
	if err == ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, store.NewError(store.KindUpstreamUnavailable, "session.get", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, store.NewError(store.KindSessionInconsistency, "session.get",
			fmt.Errorf("decode session %s: %w", id, err))
	}
	return &sess, nil
}

// Append records one query/answer pair. A missing session is recreated
// under the same id rather than treated as an error, so a conversation
// continues seamlessly after TTL expiry. Two concurrent first appends
// for one id can race on the read-modify-write; the loser's pair wins
// the key. Accepted: the window is repaired on the next append.
func (m *Manager) Append(ctx context.Context, id, query, answer, summary string, metadata map[string]any) (*Session, error) {
	sess, err := m.Get(ctx, id)
	if err == ErrNotFound {
		m.logger.Printf("[SESSION] Append to missing session %s, recreating", id)
		sess = &Session{ID: id, Messages: []MessagePair{}, CreatedAt: m.now().UTC()}
	} else if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	sess.Count++
	sess.Messages = append(sess.Messages, MessagePair{
		Count:  sess.Count,
		Query:  Query{Content: query, Timestamp: now},
		Answer: Answer{Content: answer, Summary: summary, Metadata: metadata, Timestamp: now},
	})

	// Sliding window: evict oldest pairs beyond the cap.
	if len(sess.Messages) > m.maxMessages {
		sess.Messages = sess.Messages[len(sess.Messages)-m.maxMessages:]
	}

	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (m *Manager) save(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return store.NewError(store.KindSessionInconsistency, "session.save", err)
	}
	if err := m.kv.SetWithTTL(ctx, keyPrefix+sess.ID, raw, m.ttl); err != nil {
		return store.NewError(store.KindUpstreamUnavailable, "session.save", err)
	}
	return nil
}
