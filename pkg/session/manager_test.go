package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"
)

func newTestManager(maxMessages int) *Manager {
	logger := log.New(io.Discard, "", 0)
	return NewManager(NewMemoryKV(), 2*time.Hour, maxMessages, logger)
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(16)

	created, err := mgr.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created session has empty id")
	}

	got, err := mgr.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Count != 0 || len(got.Messages) != 0 {
		t.Errorf("fresh session not empty: count=%d messages=%d", got.Count, len(got.Messages))
	}

	// Get must not mutate: a second read sees the same state.
	again, err := mgr.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if again.Count != got.Count || len(again.Messages) != len(got.Messages) {
		t.Error("Get mutated session state")
	}
}

func TestAppendRoundTrip(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(16)

	created, _ := mgr.Create(ctx)
	if _, err := mgr.Append(ctx, created.ID, "what is the refund policy?", "30 days.", "refunds", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := mgr.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(got.Messages))
	}
	pair := got.Messages[0]
	if pair.Query.Content != "what is the refund policy?" {
		t.Errorf("query = %q", pair.Query.Content)
	}
	if pair.Answer.Content != "30 days." || pair.Answer.Summary != "refunds" {
		t.Errorf("answer = %+v", pair.Answer)
	}
	if pair.Count != 1 || got.Count != 1 {
		t.Errorf("counts: pair=%d session=%d, want 1/1", pair.Count, got.Count)
	}
}

func TestSlidingWindowBound(t *testing.T) {
	ctx := context.Background()
	maxMessages := 4
	mgr := newTestManager(maxMessages)

	created, _ := mgr.Create(ctx)
	total := maxMessages + 3
	for i := 0; i < total; i++ {
		q := fmt.Sprintf("q%d", i+1)
		if _, err := mgr.Append(ctx, created.ID, q, "a", "", nil); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	got, _ := mgr.Get(ctx, created.ID)
	if len(got.Messages) != maxMessages {
		t.Fatalf("window = %d, want %d", len(got.Messages), maxMessages)
	}
	// Counter keeps the full history length; oldest pairs were evicted.
	if got.Count != total {
		t.Errorf("count = %d, want %d", got.Count, total)
	}
	if got.Messages[0].Query.Content != fmt.Sprintf("q%d", total-maxMessages+1) {
		t.Errorf("oldest surviving query = %q", got.Messages[0].Query.Content)
	}
	if got.Messages[maxMessages-1].Count != total {
		t.Errorf("newest pair count = %d, want %d", got.Messages[maxMessages-1].Count, total)
	}
}

func TestAppendToMissingSessionCreatesIt(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(16)

	sess, err := mgr.Append(ctx, "ghost-id", "hello", "hi", "", nil)
	if err != nil {
		t.Fatalf("Append to missing session: %v", err)
	}
	if sess.ID != "ghost-id" {
		t.Errorf("id = %q, want ghost-id", sess.ID)
	}

	ok, err := mgr.Exists(ctx, "ghost-id")
	if err != nil || !ok {
		t.Errorf("Exists after repair append = %v, %v", ok, err)
	}
}

func TestExistsMissing(t *testing.T) {
	mgr := newTestManager(16)
	ok, err := mgr.Exists(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Error("Exists reported a session that was never created")
	}
}
