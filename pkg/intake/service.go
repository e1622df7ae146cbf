package intake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sahayak-app/sahayak/pkg/logger"
	"github.com/sahayak-app/sahayak/pkg/providers"
	"github.com/sahayak-app/sahayak/pkg/store"
)

// ModelError wraps a provider/transport failure so callers can tell it apart
// from store errors. No assistant message is persisted when it occurs.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model call failed: %v", e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// TurnLocks serializes turns per conversation. Without it, two in-flight
// turns on one conversation would race to append messages and the transcript
// order would be undefined.
type TurnLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTurnLocks() *TurnLocks {
	return &TurnLocks{locks: map[string]*sync.Mutex{}}
}

func (t *TurnLocks) Get(conversationID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[conversationID] = lock
	}
	return lock
}

type Params struct {
	HistoryWindow   int
	MemoryHintLimit int
	Temperature     float64
	MaxTokens       int
	ModelTimeout    time.Duration
}

func (p Params) withDefaults() Params {
	if p.HistoryWindow <= 0 {
		p.HistoryWindow = 6
	}
	if p.MemoryHintLimit <= 0 {
		p.MemoryHintLimit = 5
	}
	if p.Temperature <= 0 {
		p.Temperature = 0.2
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = 220
	}
	if p.ModelTimeout <= 0 {
		p.ModelTimeout = 30 * time.Second
	}
	return p
}

// TurnResult carries everything one intake turn produced: the raw model
// text as persisted, the (possibly fallback) structured reply after the
// safety pass, and the flattened display string.
type TurnResult struct {
	Raw              string
	Reply            Reply
	ParsedOK         bool
	Rendered         string
	UserMessage      store.Message
	AssistantMessage store.Message
}

// Service runs intake turns end to end: append the user turn, assemble
// context, call the model, parse against the contract, apply the safety
// override, persist the raw reply, render.
type Service struct {
	convs     store.ConversationStore
	provider  providers.LLMProvider
	lexicon   *Lexicon
	assembler *Assembler
	params    Params
	locks     *TurnLocks
}

func NewService(convs store.ConversationStore, memory store.MemoryStore, provider providers.LLMProvider, lexicon *Lexicon, params Params, locks *TurnLocks) *Service {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	if locks == nil {
		locks = NewTurnLocks()
	}
	return &Service{
		convs:     convs,
		provider:  provider,
		lexicon:   lexicon,
		assembler: NewAssembler(convs, memory),
		params:    params.withDefaults(),
		locks:     locks,
	}
}

func (s *Service) RunTurn(ctx context.Context, conversationID, userID, text string) (*TurnResult, error) {
	lock := s.locks.Get(conversationID)
	lock.Lock()
	defer lock.Unlock()

	// Context covers prior turns only; the new turn is appended below.
	window, contextUsed, err := s.assembler.Assemble(ctx, conversationID, userID, s.params.HistoryWindow, s.params.MemoryHintLimit)
	if err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}

	userMsg, err := s.convs.AppendUserMessage(ctx, conversationID, userID, text)
	if err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	messages := make([]providers.Message, 0, len(window)+2)
	messages = append(messages, providers.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, window...)
	messages = append(messages, providers.Message{Role: "user", Content: text})

	mctx, cancel := context.WithTimeout(ctx, s.params.ModelTimeout)
	defer cancel()

	resp, err := s.provider.Chat(mctx, messages, "", map[string]interface{}{
		"temperature": s.params.Temperature,
		"max_tokens":  s.params.MaxTokens,
	})
	if err != nil {
		return nil, &ModelError{Err: err}
	}

	raw := resp.Content
	reply, parsedOK := ParseReply(raw)
	reply = s.lexicon.Apply(text, reply)

	// Raw text is stored, not the parsed object, so diagnostics survive
	// parse failures and re-parsing stays idempotent.
	saved, err := s.convs.AppendAssistantMessage(ctx, conversationID, raw, store.KindJSON, map[string]interface{}{
		"response_type": "intake",
		"parsed_ok":     parsedOK,
		"context_used":  contextUsed,
	})
	if err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}

	// Best effort, never blocks the turn.
	if err := s.convs.TouchConversation(ctx, conversationID, ""); err != nil {
		logger.WarnCF("intake", "touch conversation failed", map[string]interface{}{
			"conversation_id": conversationID,
			"error":           err.Error(),
		})
	}

	logger.DebugCF("intake", "turn complete", map[string]interface{}{
		"conversation_id": conversationID,
		"parsed_ok":       parsedOK,
		"context_used":    contextUsed,
	})

	return &TurnResult{
		Raw:              raw,
		Reply:            reply,
		ParsedOK:         parsedOK,
		Rendered:         RenderReply(reply),
		UserMessage:      userMsg,
		AssistantMessage: saved,
	}, nil
}
