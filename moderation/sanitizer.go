// Package moderation cleans user content before it reaches the search index.
package moderation

import (
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips every tag and the bodies of script and style elements.
// The remaining text stays HTML escaped, so encoded markup never turns back
// into a live tag. Line breaks and indentation of plain text are kept.
type Sanitizer struct {
	policy *bluemonday.Policy
	censor *Censor
	log    *slog.Logger
}

// NewSanitizer accepts a nil censor.
func NewSanitizer(censor *Censor, log *slog.Logger) *Sanitizer {
	return &Sanitizer{
		policy: bluemonday.StrictPolicy(),
		censor: censor,
		log:    log,
	}
}

func (s *Sanitizer) Sanitize(content string) string {
	clean := strings.TrimSpace(s.policy.Sanitize(content))
	if s.censor == nil {
		return clean
	}
	censored, words := s.censor.Apply(clean)
	if len(words) > 0 {
		s.log.Debug("Content censored", "words", len(words))
	}
	return censored
}
