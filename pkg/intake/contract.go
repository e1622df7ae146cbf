package intake

import (
	"encoding/json"
	"strings"
)

const (
	ModeAsk   = "ask"
	ModeGuide = "guide"
)

// systemPrompt is the fixed instruction that defines the reply contract.
const systemPrompt = `You are a concise intake assistant.
Behavior:
- Keep replies short (1-2 sentences). Use plain language. No emojis.
- First, reflect understanding in <=1 short sentence.
- If information is insufficient, ask exactly one focused question.
- If sufficient, give next steps in <=3 short bullets.
- Prefer specifics: what happened, when, where, who, evidence, urgency.
- If emergency or danger: tell the user to contact local emergency services immediately.
- Ask for jurisdiction (city/country) only if relevant to guidance.
- No legal conclusions; provide procedural guidance only.
Output JSON only with: { "mode": "ask" | "guide", "message": string, "question"?: string, "steps"?: string[] }`

// Reply is the structured contract the model must emit. Question is only
// meaningful when Mode is ask, Steps only when Mode is guide.
type Reply struct {
	Mode     string   `json:"mode"`
	Message  string   `json:"message"`
	Question string   `json:"question,omitempty"`
	Steps    []string `json:"steps,omitempty"`
}

// FallbackReply is the fixed always-valid reply substituted when the model
// output cannot be parsed.
func FallbackReply() Reply {
	return Reply{
		Mode:     ModeAsk,
		Message:  "Sorry, I didn't catch that.",
		Question: "Could you briefly share what happened, when, and where?",
	}
}

// ParseReply parses raw model output against the reply contract. It never
// fails: malformed or incomplete output yields the fallback reply and
// ok=false. A reply is valid only when mode is ask or guide, message is
// non-empty, and steps, when present, decodes as a string array.
func ParseReply(raw string) (Reply, bool) {
	var wire struct {
		Mode     string          `json:"mode"`
		Message  string          `json:"message"`
		Question string          `json:"question"`
		Steps    json.RawMessage `json:"steps"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return FallbackReply(), false
	}
	if wire.Mode != ModeAsk && wire.Mode != ModeGuide {
		return FallbackReply(), false
	}
	if strings.TrimSpace(wire.Message) == "" {
		return FallbackReply(), false
	}

	var steps []string
	if len(wire.Steps) > 0 && string(wire.Steps) != "null" {
		if err := json.Unmarshal(wire.Steps, &steps); err != nil {
			return FallbackReply(), false
		}
	}

	return Reply{
		Mode:     wire.Mode,
		Message:  wire.Message,
		Question: wire.Question,
		Steps:    steps,
	}, true
}
