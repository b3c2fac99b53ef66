package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Censor masks dictionary words, including leet speak and words split by punctuation.
// A Censor with an empty dictionary returns its input untouched.
type Censor struct {
	matcher     *goahocorasick.Machine
	replacement rune
	log         *slog.Logger
}

// textMapping keeps, for each normalized rune, its index in the original text.
type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewCensor builds the Aho-Corasick automaton over the normalized dictionary.
// Words made only of noise normalize to nothing and are skipped.
func NewCensor(words []string, replacement rune, log *slog.Logger) (*Censor, error) {
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		if pattern := normalizeRunes([]rune(word)); len(pattern) > 0 {
			patterns = append(patterns, pattern)
		}
	}
	c := &Censor{replacement: replacement, log: log}
	if len(patterns) == 0 {
		return c, nil
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	c.matcher = m
	log.Debug("Censor dictionary loaded", "words", len(patterns))
	return c, nil
}

// Apply returns the masked text and the dictionary words found, in order.
func (c *Censor) Apply(original string) (string, []string) {
	if c.matcher == nil {
		return original, nil
	}
	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original, nil
	}
	terms := c.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(terms) == 0 {
		return original, nil
	}

	runes := []rune(original)
	var found []string
	for _, term := range terms {
		start, end := term.Pos, term.Pos+len(term.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}
		for i := mapping.origIdx[start]; i <= mapping.origIdx[end-1]; i++ {
			runes[i] = c.replacement
		}
		found = append(found, string(term.Word))
	}
	return string(runes), found
}

func normalize(input string) textMapping {
	runes := []rune(input)
	mapping := textMapping{
		normalized: make([]rune, 0, len(runes)),
		origIdx:    make([]int, 0, len(runes)),
	}
	for i, r := range runes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(clean))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps leet speak back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	case '7':
		return 't'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
