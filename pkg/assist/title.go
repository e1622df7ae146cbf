package assist

import "strings"

var titleRules = []struct {
	keyword string
	title   string
}{
	{"passport", "Passport Application Help"},
	{"pan card", "PAN Card Assistance"},
	{"aadhaar", "Aadhaar Card Support"},
	{"gst", "GST Registration Help"},
	{"property", "Property Related Query"},
	{"tax", "Tax Related Help"},
	{"marriage", "Marriage Documentation"},
	{"education", "Education Related Query"},
}

// TitleFor derives a conversation title from the first user message: a
// keyword-table lookup, falling back to the first four words capped at 30
// characters.
func TitleFor(firstUserMessage string) string {
	trimmed := strings.TrimSpace(firstUserMessage)
	if trimmed == "" {
		return "New Conversation"
	}

	lower := strings.ToLower(trimmed)
	for _, rule := range titleRules {
		if strings.Contains(lower, rule.keyword) {
			return rule.title
		}
	}

	words := strings.Fields(trimmed)
	if len(words) > 4 {
		words = words[:4]
	}
	title := strings.Join(words, " ")
	if len(title) > 30 {
		title = title[:30]
	}
	if len(trimmed) > 30 {
		title += "..."
	}
	return title
}
