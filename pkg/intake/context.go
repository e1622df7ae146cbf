package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sahayak-app/sahayak/pkg/providers"
	"github.com/sahayak-app/sahayak/pkg/store"
)

// Assembler builds the bounded message list handed to the model: the last N
// turns of a conversation plus an optional memory-hint line.
type Assembler struct {
	convs  store.ConversationStore
	memory store.MemoryStore
}

func NewAssembler(convs store.ConversationStore, memory store.MemoryStore) *Assembler {
	return &Assembler{convs: convs, memory: memory}
}

// Assemble returns the context window for one turn. The second return value
// is the number of prior messages included, recorded later as turn metadata.
// Assistant JSON replies pass through as their raw serialized string. The
// hint line summarizes up to hintLimit unexpired facts as key=value pairs,
// appended after history as a system turn, never persisted.
func (a *Assembler) Assemble(ctx context.Context, conversationID, userID string, window, hintLimit int) ([]providers.Message, int, error) {
	var (
		history []store.Message
		facts   []store.MemoryFact
	)

	// The two reads are independent, run them concurrently.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs, err := a.convs.ListRecentMessages(gctx, conversationID, window)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		history = msgs
		return nil
	})
	g.Go(func() error {
		fs, err := a.memory.ListFacts(gctx, userID)
		if err != nil {
			return fmt.Errorf("load memory: %w", err)
		}
		facts = fs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	out := make([]providers.Message, 0, len(history)+1)
	for _, m := range history {
		out = append(out, providers.Message{Role: m.Role, Content: m.Content})
	}

	if hint := MemoryHint(facts, hintLimit, time.Now().UnixMilli()); hint != "" {
		out = append(out, providers.Message{Role: "system", Content: hint})
	}

	return out, len(history), nil
}

// MemoryHint renders up to limit unexpired facts as a single
// "User hints: k=v, ..." line, or "" when nothing usable remains.
func MemoryHint(facts []store.MemoryFact, limit int, nowMS int64) string {
	pairs := make([]string, 0, limit)
	for _, f := range facts {
		if f.Expired(nowMS) {
			continue
		}
		pairs = append(pairs, f.Key+"="+formatFactValue(f.Value))
		if len(pairs) >= limit {
			break
		}
	}
	if len(pairs) == 0 {
		return ""
	}
	return "User hints: " + strings.Join(pairs, ", ")
}

// formatFactValue renders a JSON fact value for the hint line: bare strings
// stay unquoted, scalars print plainly, anything structured stays compact
// JSON.
func formatFactValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	switch vv := v.(type) {
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(vv)
	case nil:
		return "null"
	default:
		compact, err := json.Marshal(v)
		if err != nil {
			return string(raw)
		}
		return string(compact)
	}
}
