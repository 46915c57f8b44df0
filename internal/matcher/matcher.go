// Package matcher selects the first rule whose patterns match a
// comment's text. Matching is pure: no side effects, no storage access.
package matcher

import (
	"regexp"
	"strings"

	"github.com/replygram/replygram/internal/models"
)

// Match returns the first rule in rules with a pattern matching text,
// or nil when nothing matches. Rules are tried in the order given;
// within a rule, patterns are tried in list order, and the first hit
// short-circuits the whole scan.
//
// Each pattern is interpreted as a case-insensitive regular expression.
// A pattern that does not compile is matched as a case-insensitive
// substring instead, so a malformed pattern degrades rather than fails.
func Match(text string, rules []models.Rule) *models.Rule {
	lower := strings.ToLower(text)

	for i := range rules {
		for _, pattern := range rules[i].Patterns {
			if matchPattern(text, lower, pattern) {
				return &rules[i]
			}
		}
	}
	return nil
}

func matchPattern(text, lowerText, pattern string) bool {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return strings.Contains(lowerText, strings.ToLower(pattern))
	}
	return re.MatchString(text)
}
