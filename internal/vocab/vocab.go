// Package vocab holds the vocabulary of availability tokens the watch
// pipeline recognizes. The vocabulary is data, not code: a built-in
// default ships with the binary and operators can replace it with a
// YAML file that reloads without a restart.
package vocab

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPatterns covers the tokens the vacancy table is known to
// render: full house, a remaining-seat count, free-seat notes and the
// single-glyph marks some layouts use. More specific patterns come
// first; at equal match positions the earlier pattern wins.
var DefaultPatterns = []string{
	`満席`,
	`残\s*\d+\s*席(?:以上)?`,
	`空席多数`,
	`空席`,
	`[○△×]`,
}

// yamlFile is the on-disk shape of a vocabulary file.
type yamlFile struct {
	Patterns []string `yaml:"patterns"`
}

// Vocabulary is an ordered list of compiled token patterns.
type Vocabulary struct {
	patterns    []string
	alternation string
	token       *regexp.Regexp
}

// New compiles patterns into a Vocabulary. Every pattern must compile
// on its own and must not match the empty string.
func New(patterns []string) (*Vocabulary, error) {
	if len(patterns) == 0 {
		return nil, errors.New("vocabulary needs at least one pattern")
	}

	alts := make([]string, len(patterns))
	kept := make([]string, len(patterns))
	for i, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("patterns[%d]: empty pattern", i)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("patterns[%d]: invalid pattern %q: %w", i, p, err)
		}
		if re.MatchString("") {
			return nil, fmt.Errorf("patterns[%d]: pattern %q matches the empty string", i, p)
		}
		kept[i] = p
		alts[i] = "(?:" + p + ")"
	}

	alternation := strings.Join(alts, "|")
	token, err := regexp.Compile(alternation)
	if err != nil {
		return nil, fmt.Errorf("combine patterns: %w", err)
	}

	return &Vocabulary{patterns: kept, alternation: alternation, token: token}, nil
}

// Parse builds a Vocabulary from YAML file contents.
func Parse(data []byte) (*Vocabulary, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse vocabulary yaml: %w", err)
	}
	return New(f.Patterns)
}

// Load reads and parses a vocabulary file.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Default returns the built-in vocabulary.
func Default() *Vocabulary {
	return defaultVocabulary
}

var defaultVocabulary = mustNew(DefaultPatterns)

func mustNew(patterns []string) *Vocabulary {
	v, err := New(patterns)
	if err != nil {
		panic("vocab: bad default patterns: " + err.Error())
	}
	return v
}

// FindToken returns the leftmost token in s. At the same position the
// earliest pattern in the vocabulary wins.
func (v *Vocabulary) FindToken(s string) (string, bool) {
	loc := v.token.FindStringIndex(s)
	if loc == nil {
		return "", false
	}
	return s[loc[0]:loc[1]], true
}

// ScanAfterLabel finds the first token that appears anywhere after the
// first occurrence of label, crossing line boundaries. The stretch
// between label and token is kept as short as possible.
func (v *Vocabulary) ScanAfterLabel(text, label string) (string, bool) {
	re, err := regexp.Compile(`(?s)` + regexp.QuoteMeta(label) + `.*?(` + v.alternation + `)`)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Patterns returns the pattern sources in priority order.
func (v *Vocabulary) Patterns() []string {
	out := make([]string, len(v.patterns))
	copy(out, v.patterns)
	return out
}
