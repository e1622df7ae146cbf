package janitor

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sahayak-app/sahayak/pkg/store"
)

func TestNew_ScheduleValidation(t *testing.T) {
	s := newTestStore(t)

	if _, err := New(s, "not a cron line"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}

	j, err := New(s, "")
	if err != nil {
		t.Fatalf("empty schedule should use the default: %v", err)
	}
	if j.schedule != defaultSchedule {
		t.Errorf("schedule = %q", j.schedule)
	}
}

func TestPurgeNow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UnixMilli()

	if _, err := s.UpsertFact(ctx, store.MemoryFact{UserID: "u1", Key: "stale", Value: json.RawMessage(`true`), Type: store.FactContext, ExpiresAtMS: now - 1000}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := s.UpsertFact(ctx, store.MemoryFact{UserID: "u1", Key: "fresh", Value: json.RawMessage(`true`), Type: store.FactContext, ExpiresAtMS: now + 60_000}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	j, err := New(s, "* * * * *")
	if err != nil {
		t.Fatalf("new janitor: %v", err)
	}
	j.PurgeNow(ctx)

	facts, err := s.ListFacts(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(facts) != 1 || facts[0].Key != "fresh" {
		t.Errorf("facts after purge: %#v", facts)
	}
}

func TestStartStop(t *testing.T) {
	j, err := New(newTestStore(t), "* * * * *")
	if err != nil {
		t.Fatalf("new janitor: %v", err)
	}
	j.Start()
	j.Stop()
	// Stop is idempotent.
	j.Stop()
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sahayak.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
