package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replygram/replygram/internal/models"
)

func makeRule(id int64, patterns ...string) models.Rule {
	return models.Rule{
		ID:         id,
		AccountID:  "shop",
		MediaID:    "media-1",
		Patterns:   patterns,
		ReplyText:  "thanks!",
		DirectText: "check your inbox",
	}
}

func TestMatch_ValidRegex(t *testing.T) {
	rules := []models.Rule{makeRule(1, "price")}

	matched := Match("what's the price??", rules)
	require.NotNil(t, matched)
	assert.Equal(t, int64(1), matched.ID)
}

func TestMatch_CaseInsensitive(t *testing.T) {
	rules := []models.Rule{makeRule(1, "PRICE")}

	matched := Match("What's the Price??", rules)
	require.NotNil(t, matched)
	assert.Equal(t, int64(1), matched.ID)
}

func TestMatch_InvalidRegexFallsBackToSubstring(t *testing.T) {
	// unbalanced parenthesis does not compile as a regex
	rules := []models.Rule{makeRule(1, "(interested")}

	matched := Match("interested (email me)", rules)
	require.NotNil(t, matched)
	assert.Equal(t, int64(1), matched.ID)
}

func TestMatch_InvalidRegexSubstringIsCaseInsensitive(t *testing.T) {
	rules := []models.Rule{makeRule(1, "(INTERESTED")}

	matched := Match("so (interested in this", rules)
	require.NotNil(t, matched)
}

func TestMatch_NoMatch(t *testing.T) {
	rules := []models.Rule{makeRule(1, "price")}

	assert.Nil(t, Match("hello", rules))
}

func TestMatch_EmptyRuleSet(t *testing.T) {
	assert.Nil(t, Match("anything", nil))
}

func TestMatch_FirstRuleWins(t *testing.T) {
	rules := []models.Rule{
		makeRule(1, "ship"),
		makeRule(2, "shipping"),
	}

	matched := Match("when is shipping?", rules)
	require.NotNil(t, matched)
	assert.Equal(t, int64(1), matched.ID)
}

func TestMatch_PatternOrderWithinRule(t *testing.T) {
	rules := []models.Rule{
		makeRule(1, "nomatch", "discount"),
		makeRule(2, "discount"),
	}

	matched := Match("any discount?", rules)
	require.NotNil(t, matched)
	assert.Equal(t, int64(1), matched.ID, "second pattern of the first rule should win over later rules")
}

func TestMatch_Deterministic(t *testing.T) {
	rules := []models.Rule{
		makeRule(1, "a+b"),
		makeRule(2, "(broken"),
	}
	text := "aaab and (broken too"

	first := Match(text, rules)
	require.NotNil(t, first)
	for i := 0; i < 10; i++ {
		again := Match(text, rules)
		require.NotNil(t, again)
		assert.Equal(t, first.ID, again.ID)
	}
}

func TestMatch_DoesNotMutateRules(t *testing.T) {
	rules := []models.Rule{makeRule(1, "price", "cost")}

	Match("price please", rules)

	assert.Equal(t, []string{"price", "cost"}, rules[0].Patterns)
	assert.Equal(t, "thanks!", rules[0].ReplyText)
}
