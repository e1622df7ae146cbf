package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sahayak-app/sahayak/pkg/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sahayak.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAssemble_WindowBound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, err := s.GetOrCreateConversation(ctx, "u1", "intake")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	for i := 0; i < 20; i++ {
		if _, err := s.AppendUserMessage(ctx, conv.ID, "u1", fmt.Sprintf("turn %d", i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	a := NewAssembler(s, s)
	msgs, used, err := a.Assemble(ctx, conv.ID, "u1", 6, 5)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if used != 6 {
		t.Errorf("context_used = %d, want 6", used)
	}
	if len(msgs) != 6 {
		t.Fatalf("window = %d messages, want 6", len(msgs))
	}
	// The 6 most recent, oldest first.
	for i, m := range msgs {
		want := fmt.Sprintf("turn %d", 14+i)
		if m.Content != want {
			t.Errorf("msgs[%d] = %q, want %q", i, m.Content, want)
		}
	}
}

func TestAssemble_EmptyConversation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, _ := s.GetOrCreateConversation(ctx, "u1", "intake")
	a := NewAssembler(s, s)
	msgs, used, err := a.Assemble(ctx, conv.ID, "u1", 6, 5)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if used != 0 || len(msgs) != 0 {
		t.Errorf("expected empty window, got %d messages used=%d", len(msgs), used)
	}
}

func TestAssemble_RawAssistantJSONPassesThrough(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, _ := s.GetOrCreateConversation(ctx, "u1", "intake")
	raw := `{"mode":"ask","message":"Got it.","question":"When?"}`
	if _, err := s.AppendAssistantMessage(ctx, conv.ID, raw, store.KindJSON, nil); err != nil {
		t.Fatalf("append assistant: %v", err)
	}

	a := NewAssembler(s, s)
	msgs, _, err := a.Assemble(ctx, conv.ID, "u1", 6, 5)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != store.RoleAssistant || msgs[0].Content != raw {
		t.Errorf("assistant turn must pass through as its raw string: %#v", msgs)
	}
}

func TestAssemble_MemoryHintAppended(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv, _ := s.GetOrCreateConversation(ctx, "u1", "intake")
	if _, err := s.AppendUserMessage(ctx, conv.ID, "u1", "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.UpsertFact(ctx, store.MemoryFact{UserID: "u1", Key: "location", Value: json.RawMessage(`"pune"`), Type: store.FactFact}); err != nil {
		t.Fatalf("upsert fact: %v", err)
	}

	a := NewAssembler(s, s)
	msgs, used, err := a.Assemble(ctx, conv.ID, "u1", 6, 5)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if used != 1 {
		t.Errorf("context_used = %d, want 1 (hint line not counted)", used)
	}
	last := msgs[len(msgs)-1]
	if last.Role != "system" || last.Content != "User hints: location=pune" {
		t.Errorf("hint line = %#v", last)
	}
}

func TestMemoryHint_FormattingAndLimits(t *testing.T) {
	now := time.Now().UnixMilli()

	facts := []store.MemoryFact{
		{Key: "location", Value: json.RawMessage(`"pune"`)},
		{Key: "age", Value: json.RawMessage(`34`)},
		{Key: "interested_in_passport", Value: json.RawMessage(`true`)},
		{Key: "household", Value: json.RawMessage(`{"size":4}`)},
	}
	got := MemoryHint(facts, 5, now)
	want := "User hints: location=pune, age=34, interested_in_passport=true, household={\"size\":4}"
	if got != want {
		t.Errorf("hint = %q, want %q", got, want)
	}

	// Limit caps the pair count.
	got = MemoryHint(facts, 2, now)
	if got != "User hints: location=pune, age=34" {
		t.Errorf("limited hint = %q", got)
	}

	// Expired facts are skipped entirely.
	expired := []store.MemoryFact{
		{Key: "stale", Value: json.RawMessage(`"x"`), ExpiresAtMS: now - 1},
	}
	if got := MemoryHint(expired, 5, now); got != "" {
		t.Errorf("expired-only hint = %q, want empty", got)
	}

	if got := MemoryHint(nil, 5, now); got != "" {
		t.Errorf("no-facts hint = %q, want empty", got)
	}
}
