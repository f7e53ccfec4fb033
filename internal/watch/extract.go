package watch

import (
	"strings"

	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/vocab"
)

// Snippet caps, in runes. Success snippets stay short; the not-found
// snippet carries more context because it is the only evidence left
// once the page layout changes.
const (
	lineSnippetCap     = 200
	globalSnippetCap   = 300
	notFoundSnippetCap = 700
)

// Extract locates the availability token for label inside normalized
// page text. Matching runs in three tiers, most precise first:
//
//  1. the first line containing the label
//  2. that same line joined with the following two lines
//  3. the whole text, shortest stretch between the label and a token
//
// Only the first line containing the label is inspected by tiers 1 and
// 2. When every tier misses, Extract returns a not-found result that
// carries a bounded excerpt of the text for diagnosis.
func Extract(text, label string, v *vocab.Vocabulary) Result {
	label = Normalize(label)

	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		if !strings.Contains(ln, label) {
			continue
		}
		if tok, ok := v.FindToken(ln); ok {
			return successResult(Status(tok), truncateRunes(strings.TrimSpace(ln), lineSnippetCap))
		}
		end := i + 3
		if end > len(lines) {
			end = len(lines)
		}
		window := strings.Join(lines[i:end], " ")
		if tok, ok := v.FindToken(window); ok {
			return successResult(Status(tok), truncateRunes(strings.TrimSpace(window), lineSnippetCap))
		}
		break
	}

	if tok, ok := v.ScanAfterLabel(text, label); ok {
		return successResult(Status(tok), truncateRunes(text, globalSnippetCap))
	}

	return notFoundResult(truncateRunes(text, notFoundSnippetCap))
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
