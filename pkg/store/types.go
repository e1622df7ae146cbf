package store

import (
	"encoding/json"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message content kinds. KindJSON marks assistant replies that carry the
// serialized structured intake contract rather than free text.
const (
	KindText = "text"
	KindJSON = "json"
)

// FactType classifies long-term memory facts.
type FactType string

const (
	FactPreference FactType = "preference"
	FactFact       FactType = "fact"
	FactContext    FactType = "context"
)

// Conversation is a named thread of turns between one user and the assistant.
type Conversation struct {
	ID          string
	UserID      string
	Title       string
	Tag         string
	CreatedAtMS int64
	UpdatedAtMS int64
}

// Message is one persisted turn within a conversation. Messages are
// immutable once created; only the bulk clear removes them.
type Message struct {
	ID             string
	ConversationID string
	UserID         string
	Role           string
	Content        string
	Kind           string
	Metadata       map[string]interface{}
	CreatedAt      time.Time
}

// MemoryFact is a small persisted key/value hint about a user. Key is unique
// per user; ExpiresAtMS of 0 means the fact never expires.
type MemoryFact struct {
	ID          string
	UserID      string
	Key         string
	Value       json.RawMessage
	Type        FactType
	ExpiresAtMS int64
	CreatedAtMS int64
	UpdatedAtMS int64
}

// Expired reports whether the fact should be treated as absent at nowMS.
func (f MemoryFact) Expired(nowMS int64) bool {
	return f.ExpiresAtMS != 0 && f.ExpiresAtMS <= nowMS
}
