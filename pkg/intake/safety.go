package intake

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// SafetyPrefix is prepended to the reply message whenever the user's raw
// input matches the lexicon.
const SafetyPrefix = "If you are in immediate danger, contact local emergency services now."

var defaultKeywords = []string{
	"danger", "violence", "threat", "stalking", "attack", "bleeding",
	"suicide", "harassment", "kidnap", "assault", "rape",
}

// Lexicon is the keyword set behind the safety override. Matching is a
// lower-cased substring check, deliberately blunt so it cannot be defeated
// by the model ignoring instructions.
type Lexicon struct {
	keywords []string
}

func DefaultLexicon() *Lexicon {
	return &Lexicon{keywords: append([]string(nil), defaultKeywords...)}
}

// LoadLexicon builds a lexicon from the default list plus a newline-separated
// word file (optional, path may be empty) and any extra keywords. Lines
// starting with # are comments.
func LoadLexicon(path string, extra []string) (*Lexicon, error) {
	lex := DefaultLexicon()
	for _, word := range extra {
		lex.add(word)
	}
	if strings.TrimSpace(path) == "" {
		return lex, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open safety lexicon %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lex.add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read safety lexicon %s: %w", path, err)
	}
	return lex, nil
}

func (l *Lexicon) add(word string) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return
	}
	for _, existing := range l.keywords {
		if existing == word {
			return
		}
	}
	l.keywords = append(l.keywords, word)
}

// Matches reports whether the text contains any lexicon keyword.
func (l *Lexicon) Matches(text string) bool {
	t := strings.ToLower(text)
	for _, k := range l.keywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

// Apply prepends the safety sentence to the reply message when the user's
// input matches. Mode, question, and steps are never touched; the transform
// runs after parsing so it also covers the fallback path.
func (l *Lexicon) Apply(userText string, r Reply) Reply {
	if !l.Matches(userText) {
		return r
	}
	r.Message = SafetyPrefix + " " + r.Message
	return r
}
