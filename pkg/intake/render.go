package intake

import (
	"fmt"
	"strings"
)

// maxRenderedSteps bounds how many guide steps reach the display string.
const maxRenderedSteps = 3

// RenderReply flattens a structured reply into one display string. Ask
// replies join message and question with a single space, skipping empties.
// Guide replies append up to the first three steps as numbered lines. The
// function is pure and deterministic.
func RenderReply(r Reply) string {
	if r.Mode == ModeGuide {
		var b strings.Builder
		b.WriteString(r.Message)
		n := len(r.Steps)
		if n > maxRenderedSteps {
			n = maxRenderedSteps
		}
		for i := 0; i < n; i++ {
			b.WriteString(fmt.Sprintf("\n%d. %s", i+1, r.Steps[i]))
		}
		return b.String()
	}

	parts := make([]string, 0, 2)
	if r.Message != "" {
		parts = append(parts, r.Message)
	}
	if r.Question != "" {
		parts = append(parts, r.Question)
	}
	return strings.Join(parts, " ")
}
