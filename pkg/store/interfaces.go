package store

import "context"

// ConversationStore provides durable persistence for conversations and
// their transcripts. Errors propagate unchanged; callers treat them as
// fatal for the current turn.
type ConversationStore interface {
	GetOrCreateConversation(ctx context.Context, userID, tag string) (Conversation, error)
	GetConversation(ctx context.Context, id string) (Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	AppendUserMessage(ctx context.Context, conversationID, userID, text string) (Message, error)
	AppendAssistantMessage(ctx context.Context, conversationID, content, kind string, metadata map[string]interface{}) (Message, error)
	TouchConversation(ctx context.Context, id, titleHint string) error
	ClearMessages(ctx context.Context, conversationID string) (int, error)
}

// MemoryStore provides persistence for per-user memory facts. The adapter
// does not filter expired facts; callers decide freshness themselves.
type MemoryStore interface {
	ListFacts(ctx context.Context, userID string) ([]MemoryFact, error)
	GetFact(ctx context.Context, userID, key string) (MemoryFact, error)
	UpsertFact(ctx context.Context, fact MemoryFact) (MemoryFact, error)
	PurgeExpiredFacts(ctx context.Context, nowMS int64) (int, error)
}
