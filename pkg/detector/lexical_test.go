package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"crisis-escalation-service/pkg/policy"
)

func TestLexicalMatcher_EmergencyTier(t *testing.T) {
	m := NewLexicalMatcher()

	tests := []string{
		"I've been thinking about suicide",
		"I want to kill myself",
		"sometimes I wish I was dead",
		"there is no reason to live anymore",
		"I want to end it all",
		"everyone would be better off without me",
	}

	for _, text := range tests {
		match := m.Match(text)
		assert.True(t, match.Matched, "expected match for %q", text)
		assert.Equal(t, policy.TriggerCategoryEmergency, match.Category, "text %q", text)
		assert.Equal(t, 9, match.Score, "text %q", text)
		assert.NotEmpty(t, match.Triggers, "text %q", text)
	}
}

func TestLexicalMatcher_ElevatedTier(t *testing.T) {
	m := NewLexicalMatcher()

	match := m.Match("I started cutting again last week")
	assert.True(t, match.Matched)
	assert.Equal(t, policy.TriggerCategoryElevated, match.Category)
	assert.Equal(t, 7, match.Score)
	assert.Contains(t, match.Triggers, "cutting")
}

func TestLexicalMatcher_DistressTier(t *testing.T) {
	m := NewLexicalMatcher()

	match := m.Match("everything feels hopeless and I'm falling apart")
	assert.True(t, match.Matched)
	assert.Equal(t, policy.TriggerCategoryDistress, match.Category)
	assert.Equal(t, 4, match.Score)
	assert.Contains(t, match.Triggers, "hopeless")
	assert.Contains(t, match.Triggers, "breaking_down")
}

func TestLexicalMatcher_HighestTierWins(t *testing.T) {
	m := NewLexicalMatcher()

	// Text matching both emergency and distress vocabulary resolves to the
	// emergency tier only.
	match := m.Match("I feel hopeless and I want to end it all")
	assert.Equal(t, policy.TriggerCategoryEmergency, match.Category)
	assert.Equal(t, 9, match.Score)
	assert.NotContains(t, match.Triggers, "hopeless")
}

func TestLexicalMatcher_CaseInsensitive(t *testing.T) {
	m := NewLexicalMatcher()

	match := m.Match("I WANT TO END IT ALL")
	assert.True(t, match.Matched)
	assert.Equal(t, policy.TriggerCategoryEmergency, match.Category)
}

func TestLexicalMatcher_NoMatch(t *testing.T) {
	m := NewLexicalMatcher()

	for _, text := range []string{
		"I am feeling great today!",
		"can we reschedule my appointment",
		"thanks for listening yesterday",
	} {
		match := m.Match(text)
		assert.False(t, match.Matched, "unexpected match for %q", text)
	}
}
