package watch

import (
	"regexp"

	"golang.org/x/text/width"
)

// Runs of ideographic space (U+3000), tab and ASCII space. Newlines are
// deliberately excluded so line-scoped matching still works.
var spaceRuns = regexp.MustCompile(`[\x{3000}\t ]+`)

// Normalize canonicalizes raw page text before any matching. Full-width
// digits fold to ASCII ("残２席" becomes "残2席", halfwidth katakana
// folds to its regular form) and runs of ideographic space, tab and
// space collapse to a single ASCII space. Kana and kanji pass through
// unchanged. Normalize is total and idempotent.
func Normalize(raw string) string {
	return spaceRuns.ReplaceAllString(width.Fold.String(raw), " ")
}
