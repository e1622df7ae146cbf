package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

// SQLiteStore is the canonical persistent storage for conversations,
// messages and memory facts.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ ConversationStore = (*SQLiteStore)(nil)
	_ MemoryStore       = (*SQLiteStore)(nil)
)

// NewSQLiteStore creates/opens the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process service. Use one shared connection to avoid writer
	// lock contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS ai_conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			context_tag TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS conversations_tag_idx ON ai_conversations(user_id, context_tag, updated_at_ms DESC);`,
		`CREATE TABLE IF NOT EXISTS ai_messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'text',
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS messages_conversation_idx ON ai_messages(conversation_id, created_at_ms);`,
		`CREATE TABLE IF NOT EXISTS ai_memory (
			id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			fact_key TEXT NOT NULL,
			value_json TEXT NOT NULL DEFAULT 'null',
			fact_type TEXT NOT NULL DEFAULT 'fact',
			expires_at_ms INTEGER NOT NULL DEFAULT 0,
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL,
			PRIMARY KEY(user_id, fact_key)
		);`,
		`CREATE INDEX IF NOT EXISTS memory_expiry_idx ON ai_memory(expires_at_ms);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema failed on %q: %w", trimSQL(stmt), err)
		}
	}
	return nil
}

func trimSQL(sql string) string {
	line := strings.TrimSpace(sql)
	if len(line) > 96 {
		return line[:96] + "..."
	}
	return line
}

func nowMS() int64 { return time.Now().UnixMilli() }

func encodeMeta(m map[string]interface{}) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeMeta(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

// GetOrCreateConversation returns the most recently updated conversation for
// the user and tag, creating one when none exists.
func (s *SQLiteStore) GetOrCreateConversation(ctx context.Context, userID, tag string) (Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, user_id, title, context_tag, created_at_ms, updated_at_ms
FROM ai_conversations
WHERE user_id = ? AND context_tag = ?
ORDER BY updated_at_ms DESC
LIMIT 1`, userID, tag)

	var out Conversation
	err := row.Scan(&out.ID, &out.UserID, &out.Title, &out.Tag, &out.CreatedAtMS, &out.UpdatedAtMS)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, fmt.Errorf("find conversation: %w", err)
	}

	now := nowMS()
	out = Conversation{
		ID:          "conv-" + uuid.NewString(),
		UserID:      userID,
		Title:       "New Chat",
		Tag:         tag,
		CreatedAtMS: now,
		UpdatedAtMS: now,
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO ai_conversations(id, user_id, title, context_tag, created_at_ms, updated_at_ms)
VALUES(?, ?, ?, ?, ?, ?)`, out.ID, out.UserID, out.Title, out.Tag, out.CreatedAtMS, out.UpdatedAtMS); err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, user_id, title, context_tag, created_at_ms, updated_at_ms
FROM ai_conversations WHERE id = ?`, id)

	var out Conversation
	if err := row.Scan(&out.ID, &out.UserID, &out.Title, &out.Tag, &out.CreatedAtMS, &out.UpdatedAtMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return out, nil
}

// ListMessages returns the full transcript, ascending by creation time.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, conversation_id, user_id, role, content, kind, metadata_json, created_at_ms
FROM ai_messages
WHERE conversation_id = ?
ORDER BY created_at_ms ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListRecentMessages returns the last limit messages in chronological order
// (oldest of the window first).
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, conversation_id, user_id, role, content, kind, metadata_json, created_at_ms
FROM ai_messages
WHERE conversation_id = ?
ORDER BY created_at_ms DESC, rowid DESC
LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	out, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	out := []Message{}
	for rows.Next() {
		var msg Message
		var metaRaw string
		var createdMS int64
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.UserID, &msg.Role, &msg.Content, &msg.Kind, &metaRaw, &createdMS); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Metadata = decodeMeta(metaRaw)
		msg.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) AppendUserMessage(ctx context.Context, conversationID, userID, text string) (Message, error) {
	return s.appendMessage(ctx, Message{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           RoleUser,
		Content:        text,
		Kind:           KindText,
	})
}

func (s *SQLiteStore) AppendAssistantMessage(ctx context.Context, conversationID, content, kind string, metadata map[string]interface{}) (Message, error) {
	return s.appendMessage(ctx, Message{
		ConversationID: conversationID,
		Role:           RoleAssistant,
		Content:        content,
		Kind:           kind,
		Metadata:       metadata,
	})
}

func (s *SQLiteStore) appendMessage(ctx context.Context, msg Message) (Message, error) {
	if strings.TrimSpace(msg.ConversationID) == "" {
		return Message{}, fmt.Errorf("append message: empty conversation_id")
	}
	if strings.TrimSpace(msg.Role) == "" {
		return Message{}, fmt.Errorf("append message: empty role")
	}
	if msg.ID == "" {
		msg.ID = "msg-" + uuid.NewString()
	}
	if msg.Kind == "" {
		msg.Kind = KindText
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	created := msg.CreatedAt.UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("append message begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO ai_messages(id, conversation_id, user_id, role, content, kind, metadata_json, created_at_ms)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.UserID, msg.Role, msg.Content, msg.Kind, encodeMeta(msg.Metadata), created); err != nil {
		return Message{}, fmt.Errorf("append message insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE ai_conversations SET updated_at_ms = ? WHERE id = ?`, created, msg.ConversationID); err != nil {
		return Message{}, fmt.Errorf("append message update conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("append message commit: %w", err)
	}
	return msg, nil
}

// TouchConversation bumps the updated timestamp and optionally retitles.
func (s *SQLiteStore) TouchConversation(ctx context.Context, id, titleHint string) error {
	var err error
	if strings.TrimSpace(titleHint) != "" {
		_, err = s.db.ExecContext(ctx, `
UPDATE ai_conversations SET updated_at_ms = ?, title = ? WHERE id = ?`, nowMS(), titleHint, id)
	} else {
		_, err = s.db.ExecContext(ctx, `
UPDATE ai_conversations SET updated_at_ms = ? WHERE id = ?`, nowMS(), id)
	}
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// ClearMessages deletes the whole transcript of a conversation.
func (s *SQLiteStore) ClearMessages(ctx context.Context, conversationID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ai_messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("clear messages: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListFacts returns all facts for a user, most recently created first.
// Expired facts are included; freshness is the caller's concern.
func (s *SQLiteStore) ListFacts(ctx context.Context, userID string) ([]MemoryFact, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, fact_key, value_json, fact_type, expires_at_ms, created_at_ms, updated_at_ms
FROM ai_memory
WHERE user_id = ?
ORDER BY created_at_ms DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	out := []MemoryFact{}
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) GetFact(ctx context.Context, userID, key string) (MemoryFact, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, user_id, fact_key, value_json, fact_type, expires_at_ms, created_at_ms, updated_at_ms
FROM ai_memory
WHERE user_id = ? AND fact_key = ?`, userID, key)

	fact, err := scanFact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MemoryFact{}, ErrNotFound
		}
		return MemoryFact{}, err
	}
	return fact, nil
}

// UpsertFact inserts or replaces a fact by (user, key).
func (s *SQLiteStore) UpsertFact(ctx context.Context, fact MemoryFact) (MemoryFact, error) {
	if strings.TrimSpace(fact.UserID) == "" {
		return MemoryFact{}, fmt.Errorf("upsert fact: empty user_id")
	}
	if strings.TrimSpace(fact.Key) == "" {
		return MemoryFact{}, fmt.Errorf("upsert fact: empty key")
	}
	if fact.ID == "" {
		fact.ID = "mem-" + uuid.NewString()
	}
	if fact.Type == "" {
		fact.Type = FactFact
	}
	if len(fact.Value) == 0 {
		fact.Value = json.RawMessage("null")
	}
	now := nowMS()
	if fact.CreatedAtMS == 0 {
		fact.CreatedAtMS = now
	}
	fact.UpdatedAtMS = now

	_, err := s.db.ExecContext(ctx, `
INSERT INTO ai_memory(id, user_id, fact_key, value_json, fact_type, expires_at_ms, created_at_ms, updated_at_ms)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, fact_key) DO UPDATE SET
	value_json = excluded.value_json,
	fact_type = excluded.fact_type,
	expires_at_ms = excluded.expires_at_ms,
	updated_at_ms = excluded.updated_at_ms`,
		fact.ID, fact.UserID, fact.Key, string(fact.Value), string(fact.Type), fact.ExpiresAtMS, fact.CreatedAtMS, fact.UpdatedAtMS)
	if err != nil {
		return MemoryFact{}, fmt.Errorf("upsert fact: %w", err)
	}

	return s.GetFact(ctx, fact.UserID, fact.Key)
}

// PurgeExpiredFacts hard-deletes facts whose expiry has passed.
func (s *SQLiteStore) PurgeExpiredFacts(ctx context.Context, atMS int64) (int, error) {
	if atMS == 0 {
		atMS = nowMS()
	}
	res, err := s.db.ExecContext(ctx, `
DELETE FROM ai_memory WHERE expires_at_ms != 0 AND expires_at_ms <= ?`, atMS)
	if err != nil {
		return 0, fmt.Errorf("purge expired facts: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFact(row rowScanner) (MemoryFact, error) {
	var fact MemoryFact
	var valueRaw, factType string
	if err := row.Scan(&fact.ID, &fact.UserID, &fact.Key, &valueRaw, &factType, &fact.ExpiresAtMS, &fact.CreatedAtMS, &fact.UpdatedAtMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MemoryFact{}, sql.ErrNoRows
		}
		return MemoryFact{}, fmt.Errorf("scan fact: %w", err)
	}
	fact.Value = json.RawMessage(valueRaw)
	fact.Type = FactType(factType)
	return fact, nil
}
