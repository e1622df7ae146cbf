package assist

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sahayak-app/sahayak/pkg/store"
)

// topicExpiry bounds how long a topic-interest fact stays relevant.
const topicExpiry = 30 * 24 * time.Hour

var (
	locationKeywords   = []string{"live in", "based in", "located in", "from"}
	professionKeywords = []string{"work as", "employed as", "profession", "occupation", "job"}
	topicKeywords      = []string{
		"passport", "visa", "pan card", "aadhaar", "gst", "income tax",
		"property", "marriage", "divorce", "education", "scholarship",
	}

	agePattern = regexp.MustCompile(`(\d+)\s*(years?\s*old|age)`)
)

// ExtractFacts mines a user message for durable hints worth remembering:
// location, age, profession, and which service topics the user is asking
// about. Topic interests expire after 30 days. Extraction is heuristic
// keyword matching, not NLP.
func ExtractFacts(message string, now time.Time) []store.MemoryFact {
	lower := strings.ToLower(message)
	facts := make([]store.MemoryFact, 0, 4)

	if loc := phraseAfter(lower, locationKeywords); loc != "" {
		facts = append(facts, store.MemoryFact{
			Key:   "location",
			Value: mustJSON(loc),
			Type:  store.FactFact,
		})
	}

	if m := agePattern.FindStringSubmatch(lower); m != nil {
		if age, err := strconv.Atoi(m[1]); err == nil {
			facts = append(facts, store.MemoryFact{
				Key:   "age",
				Value: mustJSON(age),
				Type:  store.FactFact,
			})
		}
	}

	if prof := phraseAfter(lower, professionKeywords); prof != "" {
		facts = append(facts, store.MemoryFact{
			Key:   "profession",
			Value: mustJSON(prof),
			Type:  store.FactFact,
		})
	}

	for _, topic := range topicKeywords {
		if strings.Contains(lower, topic) {
			facts = append(facts, store.MemoryFact{
				Key:         "interested_in_" + strings.ReplaceAll(topic, " ", "_"),
				Value:       mustJSON(true),
				Type:        store.FactContext,
				ExpiresAtMS: now.Add(topicExpiry).UnixMilli(),
			})
		}
	}

	return facts
}

// phraseAfter returns up to two words following the first matching keyword,
// or "" when no keyword matches or the remainder is too short to be useful.
func phraseAfter(lower string, keywords []string) string {
	for _, kw := range keywords {
		idx := strings.Index(lower, kw)
		if idx < 0 {
			continue
		}
		rest := strings.Fields(lower[idx+len(kw):])
		if len(rest) == 0 {
			continue
		}
		if len(rest) > 2 {
			rest = rest[:2]
		}
		phrase := strings.Trim(strings.Join(rest, " "), ".,!?")
		if len(phrase) > 2 {
			return phrase
		}
	}
	return ""
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return data
}
