package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sahayak-app/sahayak/pkg/intake"
	"github.com/sahayak-app/sahayak/pkg/logger"
	"github.com/sahayak-app/sahayak/pkg/providers"
	"github.com/sahayak-app/sahayak/pkg/store"
)

const personaPrompt = `You are an expert legal advisor and government services assistant for Indian citizens. You specialize in:

- Government policies, schemes, and regulations
- Legal procedures and documentation
- Citizen rights and obligations
- Application processes for government services

Your personality:
- Act like an experienced lawyer who genuinely cares about helping citizens
- Ask clarifying questions when the user's request is vague
- Be conversational and human-like, not robotic
- Remember past conversations and build on them
- Provide specific, actionable advice
- If you don't have enough information, ask follow-up questions instead of making assumptions

Conversation style:
- Start with understanding the user's specific situation
- Ask relevant follow-up questions to get clarity
- Provide personalized advice based on their context
- Be concise but thorough
- Use simple language, avoid legal jargon unless necessary`

// PersonaPrompt builds the conversational system prompt, appending what is
// known about the user grouped by fact classification.
func PersonaPrompt(facts []store.MemoryFact, nowMS int64) string {
	var prefs, known, situational []string
	for _, f := range facts {
		if f.Expired(nowMS) {
			continue
		}
		pair := f.Key + ": " + compactValue(f.Value)
		switch f.Type {
		case store.FactPreference:
			prefs = append(prefs, pair)
		case store.FactContext:
			situational = append(situational, pair)
		default:
			known = append(known, pair)
		}
	}

	if len(prefs)+len(known)+len(situational) == 0 {
		return personaPrompt
	}

	var b strings.Builder
	b.WriteString(personaPrompt)
	b.WriteString("\n\nWhat you know about this user from previous conversations:")
	if len(prefs) > 0 {
		b.WriteString("\nPreferences: " + strings.Join(prefs, ", "))
	}
	if len(known) > 0 {
		b.WriteString("\nUser Facts: " + strings.Join(known, ", "))
	}
	if len(situational) > 0 {
		b.WriteString("\nContext: " + strings.Join(situational, ", "))
	}
	return b.String()
}

func compactValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

type Params struct {
	HistoryWindow int
	Temperature   float64
	MaxTokens     int
	ModelTimeout  time.Duration
}

func (p Params) withDefaults() Params {
	if p.HistoryWindow <= 0 {
		p.HistoryWindow = 8
	}
	if p.Temperature <= 0 {
		p.Temperature = 0.7
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = 800
	}
	if p.ModelTimeout <= 0 {
		p.ModelTimeout = 30 * time.Second
	}
	return p
}

type ChatResult struct {
	Content          string
	Title            string
	UserMessage      store.Message
	AssistantMessage store.Message
}

// Service runs free-form conversational turns: persona prompt with memory,
// wider context window, higher temperature, plain-text replies. It also
// feeds the memory store from what the user says and keeps the conversation
// title fresh.
type Service struct {
	convs    store.ConversationStore
	memory   store.MemoryStore
	provider providers.LLMProvider
	params   Params
	locks    *intake.TurnLocks
}

func NewService(convs store.ConversationStore, memory store.MemoryStore, provider providers.LLMProvider, params Params, locks *intake.TurnLocks) *Service {
	if locks == nil {
		locks = intake.NewTurnLocks()
	}
	return &Service{
		convs:    convs,
		memory:   memory,
		provider: provider,
		params:   params.withDefaults(),
		locks:    locks,
	}
}

func (s *Service) RunTurn(ctx context.Context, conversationID, userID, text string) (*ChatResult, error) {
	lock := s.locks.Get(conversationID)
	lock.Lock()
	defer lock.Unlock()

	var (
		history []store.Message
		facts   []store.MemoryFact
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs, err := s.convs.ListRecentMessages(gctx, conversationID, s.params.HistoryWindow)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		history = msgs
		return nil
	})
	g.Go(func() error {
		fs, err := s.memory.ListFacts(gctx, userID)
		if err != nil {
			return fmt.Errorf("load memory: %w", err)
		}
		facts = fs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	userMsg, err := s.convs.AppendUserMessage(ctx, conversationID, userID, text)
	if err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	messages := make([]providers.Message, 0, len(history)+2)
	messages = append(messages, providers.Message{Role: "system", Content: PersonaPrompt(facts, time.Now().UnixMilli())})
	for _, m := range history {
		messages = append(messages, providers.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, providers.Message{Role: "user", Content: text})

	mctx, cancel := context.WithTimeout(ctx, s.params.ModelTimeout)
	defer cancel()

	resp, err := s.provider.Chat(mctx, messages, "", map[string]interface{}{
		"temperature": s.params.Temperature,
		"max_tokens":  s.params.MaxTokens,
	})
	if err != nil {
		return nil, &intake.ModelError{Err: err}
	}
	content := resp.Content

	// Memory writes are best effort; a failed upsert never blocks the turn.
	for _, fact := range ExtractFacts(text, time.Now()) {
		fact.UserID = userID
		if _, err := s.memory.UpsertFact(ctx, fact); err != nil {
			logger.WarnCF("assist", "store extracted fact failed", map[string]interface{}{
				"key":   fact.Key,
				"error": err.Error(),
			})
		}
	}

	saved, err := s.convs.AppendAssistantMessage(ctx, conversationID, content, store.KindText, map[string]interface{}{
		"response_type": "conversational",
		"context_used":  len(history),
		"memory_count":  len(facts),
	})
	if err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}

	title := s.refreshTitle(ctx, conversationID)

	logger.DebugCF("assist", "turn complete", map[string]interface{}{
		"conversation_id": conversationID,
		"context_used":    len(history),
	})

	return &ChatResult{
		Content:          content,
		Title:            title,
		UserMessage:      userMsg,
		AssistantMessage: saved,
	}, nil
}

// refreshTitle retitles the conversation from its first user message. Best
// effort, logged and swallowed.
func (s *Service) refreshTitle(ctx context.Context, conversationID string) string {
	msgs, err := s.convs.ListMessages(ctx, conversationID)
	if err != nil {
		logger.WarnCF("assist", "load transcript for title failed", map[string]interface{}{
			"conversation_id": conversationID,
			"error":           err.Error(),
		})
		return ""
	}

	first := ""
	for _, m := range msgs {
		if m.Role == store.RoleUser {
			first = m.Content
			break
		}
	}
	title := TitleFor(first)
	if err := s.convs.TouchConversation(ctx, conversationID, title); err != nil {
		logger.WarnCF("assist", "touch conversation failed", map[string]interface{}{
			"conversation_id": conversationID,
			"error":           err.Error(),
		})
	}
	return title
}
